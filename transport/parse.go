package transport

import (
	"context"
	"slices"

	"github.com/fredo838/sparp/pool"
)

// ParsedResponse is what DefaultParser collects for every finished request.
type ParsedResponse struct {
	Input      Request           `json:"input"`
	StatusCode int               `json:"status_code"`
	Text       string            `json:"text"`
	Header     map[string]string `json:"headers"`
}

// DefaultParser keeps the request, the status, the body as text and the first
// value of every response header.
func DefaultParser(_ context.Context, req Request, resp *Response) (ParsedResponse, error) {
	text, err := resp.Text()
	if err != nil {
		return ParsedResponse{}, err
	}

	header := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		header[k] = resp.Header.Get(k)
	}

	return ParsedResponse{
		Input:      req,
		StatusCode: resp.StatusCode,
		Text:       text,
		Header:     header,
	}, nil
}

// StatusClassifier classifies responses by status code: codes in Success are
// successes, codes in Soft are retried, anything else is a hard failure.
type StatusClassifier struct {
	Success []int
	Soft    []int
}

// DefaultClassifier treats 200 as success and 429, 502 and 503 as transient.
var DefaultClassifier = StatusClassifier{
	Success: []int{200},
	Soft:    []int{429, 502, 503},
}

// Classify implements pool.Classifier for *Response.
func (c StatusClassifier) Classify(resp *Response) (pool.Outcome, error) {
	switch {
	case slices.Contains(c.Success, resp.StatusCode):
		return pool.Success, nil
	case slices.Contains(c.Soft, resp.StatusCode):
		return pool.SoftFail, nil
	default:
		return pool.HardFail, nil
	}
}
