package transport

import (
	"encoding/json"
	"io"
	"net/http"
)

// drainLimit caps how much of an unread body is discarded before closing, so
// the connection can be reused without hanging on a large payload.
const drainLimit = 4096

// Response is the raw response handed to classifiers and parsers. The body is
// read on first use and kept, so it may be read any number of times.
type Response struct {
	StatusCode int
	Header     http.Header
	Request    Request

	raw     *http.Response
	body    []byte
	bodyErr error
	read    bool
}

func newResponse(req Request, raw *http.Response) *Response {
	return &Response{
		StatusCode: raw.StatusCode,
		Header:     raw.Header,
		Request:    req,
		raw:        raw,
	}
}

// Bytes returns the whole body. Reading is bound to the request deadline.
func (r *Response) Bytes() ([]byte, error) {
	if !r.read {
		r.read = true
		r.body, r.bodyErr = io.ReadAll(r.raw.Body)
	}
	return r.body, r.bodyErr
}

// Text returns the body as a string.
func (r *Response) Text() (string, error) {
	b, err := r.Bytes()
	return string(b), err
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	b, err := r.Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (r *Response) close() {
	if r.raw == nil || r.raw.Body == nil {
		return
	}
	if !r.read {
		_, _ = io.CopyN(io.Discard, r.raw.Body, drainLimit)
	}
	_ = r.raw.Body.Close()
}
