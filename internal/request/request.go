// Package request parses the HTTP/1.x request head read from a client connection.
package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
)

var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrRequestTooLarge    = errors.New("request header block too large")
)

// Version is the protocol version named on the request line.
type Version int

const (
	V1_0 Version = iota
	V1_1
)

func (v Version) String() string {
	switch v {
	case V1_0:
		return "HTTP/1.0"
	default:
		return "HTTP/1.1"
	}
}

// ParseVersion maps a wire tag such as "HTTP/1.1" to a Version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "HTTP/1.0":
		return V1_0, nil
	case "HTTP/1.1":
		return V1_1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
}

// Resource is the request target split at the first '?'. Path stays URL-encoded.
type Resource struct {
	Path  string
	Query string
}

// HttpRequest is the parsed request head.
type HttpRequest struct {
	Method   string
	Resource Resource
	Version  Version
	Header   textproto.MIMEHeader
}

// New builds a GET request for an already-encoded path.
func New(path string) *HttpRequest {
	return &HttpRequest{
		Method:   "GET",
		Resource: Resource{Path: path},
		Version:  V1_1,
		Header:   textproto.MIMEHeader{},
	}
}

// ParseRequest reads the request line and header block from r. Lines may end in
// CRLF or a bare LF. A maxHeaderBytes <= 0 disables the size limit.
func ParseRequest(r *bufio.Reader, maxHeaderBytes int) (*HttpRequest, error) {
	var src io.Reader = r
	if maxHeaderBytes > 0 {
		src = &limitedReader{r: r, remaining: maxHeaderBytes}
	}
	tp := textproto.NewReader(bufio.NewReader(src))

	line, err := tp.ReadLine()
	if err != nil {
		if errors.Is(err, errLimit) {
			return nil, ErrRequestTooLarge
		}
		return nil, fmt.Errorf("%w: reading request line: %w", ErrMalformedRequest, err)
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && !(errors.Is(err, io.EOF) && len(header) == 0) {
		if errors.Is(err, errLimit) {
			return nil, ErrRequestTooLarge
		}
		return nil, fmt.Errorf("%w: reading headers: %w", ErrMalformedRequest, err)
	}
	if header == nil {
		header = textproto.MIMEHeader{}
	}
	req.Header = header
	return req, nil
}

func parseRequestLine(line string) (*HttpRequest, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, line)
	}
	method, target, proto := parts[0], parts[1], parts[2]

	if !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("%w: request target %q is not origin-form", ErrMalformedRequest, target)
	}
	version, err := ParseVersion(proto)
	if err != nil {
		return nil, err
	}

	res := Resource{Path: target}
	if i := strings.IndexByte(target, '?'); i >= 0 {
		res.Path, res.Query = target[:i], target[i+1:]
	}
	return &HttpRequest{
		Method:   method,
		Resource: res,
		Version:  version,
	}, nil
}

var errLimit = errors.New("header limit reached")

// limitedReader is io.LimitReader with a distinguishable error once the budget is spent.
type limitedReader struct {
	r         io.Reader
	remaining int
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, errLimit
	}
	if len(p) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= n
	return n, err
}
