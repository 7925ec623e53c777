// Package transport performs pool requests over HTTP.
//
// Client implements pool.Transport[Request, *Response] and pool.Releaser, so
// a runner built on it releases every response once it has been parsed and
// handed to callbacks:
//
//	client := transport.NewClient()
//	runner, err := pool.NewRunner[transport.Request, *transport.Response, transport.ParsedResponse](
//	    client, transport.DefaultClassifier.Classify,
//	    pool.WithParser(transport.DefaultParser),
//	)
//
// Every attempt is traced as a client span named "sparp.request".
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fredo838/sparp/transport"
	spanName   = "sparp.request"
)

// ConnectionError is a transport-level failure (refused connection, DNS,
// TLS). The pool does not retry it.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying client. It is shared by all workers.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTracer sets the tracer used for request spans. Defaults to the global provider.
func WithTracer(t trace.Tracer) ClientOption {
	return func(cl *Client) {
		if t != nil {
			cl.tracer = t
		}
	}
}

// WithDefaultHeader adds a header to every request that does not set it itself.
func WithDefaultHeader(key, value string) ClientOption {
	return func(cl *Client) {
		cl.headers[key] = value
	}
}

// Client performs Requests with a shared *http.Client.
type Client struct {
	http    *http.Client
	tracer  trace.Tracer
	headers map[string]string
}

// NewClient creates a Client. Without WithHTTPClient it uses a clone of the
// default transport with enough idle connections per host for a large pool.
func NewClient(opts ...ClientOption) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 1000
	tr.MaxIdleConnsPerHost = 200
	tr.IdleConnTimeout = 90 * time.Second

	c := &Client{
		http:    &http.Client{Transport: tr},
		tracer:  otel.Tracer(tracerName),
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Perform sends req. A deadline or cancellation of ctx is returned as the
// context error; other send failures are *ConnectionError. Any status code
// is a response, never an error.
func (c *Client) Perform(ctx context.Context, req Request) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.method()),
			attribute.String("http.url", req.URL),
		),
	)
	defer span.End()

	httpReq, err := req.newHTTPRequest(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &ConnectionError{Method: req.method(), URL: req.URL, Err: err}
	}
	for k, v := range c.headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}

	raw, err := c.http.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method(), req.URL, ctxErr)
		}
		return nil, &ConnectionError{Method: req.method(), URL: req.URL, Err: err}
	}

	span.SetAttributes(attribute.Int("http.status_code", raw.StatusCode))
	if raw.StatusCode >= 500 {
		span.SetStatus(codes.Error, raw.Status)
	}
	return newResponse(req, raw), nil
}

// Release drains and closes the response body.
func (c *Client) Release(resp *Response) {
	if resp != nil {
		resp.close()
	}
}
