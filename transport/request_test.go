package transport

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequests(t *testing.T) {
	input := `{"method":"POST","url":"http://a/test","json":{"value":1}}

{"url":"http://b/get","headers":{"X-Key":"k"}}
`
	var got []Request
	for req, err := range ReadRequests(strings.NewReader(input)) {
		require.NoError(t, err)
		got = append(got, req)
	}

	require.Len(t, got, 2)
	assert.Equal(t, "POST http://a/test", got[0].String())
	assert.Equal(t, map[string]any{"value": float64(1)}, got[0].JSON)
	assert.Equal(t, "GET http://b/get", got[1].String())
	assert.Equal(t, "k", got[1].Header["X-Key"])
}

func TestReadRequests_StopsAtBadLine(t *testing.T) {
	input := "{\"url\":\"http://a\"}\nnot json\n{\"url\":\"http://c\"}\n"

	var (
		n    int
		last error
	)
	for _, err := range ReadRequests(strings.NewReader(input)) {
		if err != nil {
			last = err
			continue
		}
		n++
	}

	assert.Equal(t, 1, n)
	require.Error(t, last)
	assert.Contains(t, last.Error(), "line 2")
}

func TestReadRequests_MissingURL(t *testing.T) {
	for _, err := range ReadRequests(strings.NewReader(`{"method":"GET"}`)) {
		require.ErrorContains(t, err, "missing url")
	}
}

func TestReadRequests_EarlyBreak(t *testing.T) {
	input := strings.Repeat("{\"url\":\"http://a\"}\n", 10)

	n := 0
	for range ReadRequests(strings.NewReader(input)) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestRequest_NewHTTPRequest(t *testing.T) {
	req, err := Request{URL: "http://a/x", Body: "raw"}.newHTTPRequest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)

	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))

	_, err = Request{URL: "http://a", JSON: func() {}}.newHTTPRequest(context.Background())
	require.ErrorContains(t, err, "encode json body")
}
