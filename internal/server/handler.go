package server

import (
	"example.com/rawhttpd/internal/request"
	"example.com/rawhttpd/internal/response"
)

// Handler builds the complete response for a parsed request. A returned error
// means the response could not be built at all; the connection is then closed
// without a reply.
type Handler interface {
	Respond(req *request.HttpRequest) (*response.HttpResponse, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(req *request.HttpRequest) (*response.HttpResponse, error)

// Respond calls f(req).
func (f HandlerFunc) Respond(req *request.HttpRequest) (*response.HttpResponse, error) {
	return f(req)
}
