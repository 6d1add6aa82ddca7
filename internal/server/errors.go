package server

import (
	"errors"
	"io"
	"net"
	"syscall"

	"example.com/rawhttpd/internal/request"
)

// ErrServerClosed is returned by Serve after Shutdown or once its context is done.
var ErrServerClosed = errors.New("server: closed")

// connErrorKind names why a connection ended before a response was written.
// It is used as a log field.
func connErrorKind(err error) string {
	var ne net.Error
	switch {
	case errors.Is(err, request.ErrRequestTooLarge):
		return "request_too_large"
	case errors.Is(err, request.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.As(err, &ne) && ne.Timeout():
		return "timeout"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, net.ErrClosed):
		return "client_closed"
	case errors.Is(err, request.ErrMalformedRequest):
		return "malformed_request"
	}
	return "io_error"
}

// isExpectedCloseErr reports errors that closing an already finished
// connection or listener may legitimately return.
func isExpectedCloseErr(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed)
}
