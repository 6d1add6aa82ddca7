package request

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string, limit int) (*HttpRequest, error) {
	t.Helper()
	return ParseRequest(bufio.NewReader(strings.NewReader(raw)), limit)
}

func TestParseRequest(t *testing.T) {
	testCases := []struct {
		name        string
		raw         string
		method      string
		path        string
		query       string
		version     Version
		headerKey   string
		headerValue string
	}{
		{
			name:        "crlf request with headers",
			raw:         "GET /logo.png HTTP/1.1\r\nHost: localhost\r\nUser-Agent: curl\r\n\r\n",
			method:      "GET",
			path:        "/logo.png",
			version:     V1_1,
			headerKey:   "User-Agent",
			headerValue: "curl",
		},
		{
			name:    "bare lf request",
			raw:     "HEAD /sub HTTP/1.0\n\n",
			method:  "HEAD",
			path:    "/sub",
			version: V1_0,
		},
		{
			name:    "query is split from the encoded path",
			raw:     "GET /a%20b.txt?x=1&y=2 HTTP/1.1\r\n\r\n",
			method:  "GET",
			path:    "/a%20b.txt",
			query:   "x=1&y=2",
			version: V1_1,
		},
		{
			name:    "malformed percent escapes are kept for the responder",
			raw:     "GET /%zz%4 HTTP/1.1\r\n\r\n",
			method:  "GET",
			path:    "/%zz%4",
			version: V1_1,
		},
		{
			name:    "connection closed right after the request line",
			raw:     "GET / HTTP/1.1\r\n",
			method:  "GET",
			path:    "/",
			version: V1_1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := parse(t, tc.raw, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.method, req.Method)
			assert.Equal(t, tc.path, req.Resource.Path)
			assert.Equal(t, tc.query, req.Resource.Query)
			assert.Equal(t, tc.version, req.Version)
			require.NotNil(t, req.Header)
			if tc.headerKey != "" {
				assert.Equal(t, tc.headerValue, req.Header.Get(tc.headerKey))
			}
		})
	}
}

func TestParseRequest_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		limit    int
		expected error
	}{
		{name: "empty input", raw: "", expected: ErrMalformedRequest},
		{name: "missing version", raw: "GET /\r\n\r\n", expected: ErrMalformedRequest},
		{name: "absolute-form target", raw: "GET http://x/ HTTP/1.1\r\n\r\n", expected: ErrMalformedRequest},
		{name: "unknown version", raw: "GET / HTTP/2.0\r\n\r\n", expected: ErrUnsupportedVersion},
		{
			name:     "header block over the limit",
			raw:      "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 512) + "\r\n\r\n",
			limit:    64,
			expected: ErrRequestTooLarge,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.raw, tc.limit)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expected)
		})
	}
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "HTTP/1.0", V1_0.String())
	assert.Equal(t, "HTTP/1.1", V1_1.String())

	v, err := ParseVersion("HTTP/1.1")
	require.NoError(t, err)
	assert.Equal(t, V1_1, v)
}

func TestNew(t *testing.T) {
	req := New("/x")
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/x", req.Resource.Path)
	assert.Equal(t, V1_1, req.Version)
}
