package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
)

// maxLineSize bounds one JSON-lines input record.
const maxLineSize = 4 << 20

// Request describes one outbound HTTP request.
type Request struct {
	Method string            `json:"method,omitempty"`
	URL    string            `json:"url"`
	Header map[string]string `json:"headers,omitempty"`
	// Body is sent verbatim. It is ignored when JSON is set.
	Body string `json:"body,omitempty"`
	// JSON is marshalled as the request body on every attempt.
	JSON any `json:"json,omitempty"`
}

func (r Request) String() string {
	return r.method() + " " + r.URL
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// newHTTPRequest builds a fresh *http.Request for one attempt.
func (r Request) newHTTPRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	switch {
	case r.JSON != nil:
		b, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		body = bytes.NewReader(b)
	case r.Body != "":
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method(), r.URL, body)
	if err != nil {
		return nil, err
	}
	if r.JSON != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}
	return req, nil
}

// ReadRequests lazily decodes one Request per non-blank line of r. Decoding
// stops at the first malformed line, which is yielded as an error.
func ReadRequests(r io.Reader) iter.Seq2[Request, error] {
	return func(yield func(Request, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		line := 0
		for sc.Scan() {
			line++
			raw := bytes.TrimSpace(sc.Bytes())
			if len(raw) == 0 {
				continue
			}

			var req Request
			if err := json.Unmarshal(raw, &req); err != nil {
				yield(Request{}, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if req.URL == "" {
				yield(Request{}, fmt.Errorf("line %d: %w", line, errors.New("missing url")))
				return
			}
			if !yield(req, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(Request{}, fmt.Errorf("read requests: %w", err))
		}
	}
}
