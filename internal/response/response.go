// Package response builds complete HTTP/1.1 responses for a directory tree:
// a file's bytes, a generated directory listing, or a fixed 404 page.
package response

import (
	"errors"
	"fmt"
	"io"
	"os"

	"example.com/rawhttpd/internal/config"
	"example.com/rawhttpd/internal/logger"
	"example.com/rawhttpd/internal/request"
)

// Status is the response status. Only the two statuses below are produced.
type Status int

const (
	StatusOK       Status = 200
	StatusNotFound Status = 404
)

// Code returns the numeric status code.
func (s Status) Code() int { return int(s) }

// String returns the status as written on the status line, e.g. "404 NOT FOUND".
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "200 OK"
	case StatusNotFound:
		return "404 NOT FOUND"
	}
	return fmt.Sprintf("%d", int(s))
}

// AcceptRanges is the accept-ranges declaration sent with a response.
type AcceptRanges int

const (
	AcceptRangesBytes AcceptRanges = iota
	AcceptRangesNone
)

func (a AcceptRanges) String() string {
	if a == AcceptRangesBytes {
		return "accept-ranges: bytes"
	}
	return "accept-ranges: none"
}

// HttpResponse is a fully serialized response. ResponseBody holds the header
// block followed by the body; ContentLength is the length of the body part.
type HttpResponse struct {
	Version       request.Version
	Status        Status
	ContentLength int
	AcceptRanges  AcceptRanges
	ContentType   string
	CurrentPath   string
	ResponseBody  []byte

	headerLen int
}

// Head returns the header block including the blank line that ends it.
func (r *HttpResponse) Head() []byte {
	return r.ResponseBody[:r.headerLen]
}

// Body returns the body bytes.
func (r *HttpResponse) Body() []byte {
	return r.ResponseBody[r.headerLen:]
}

// WriteTo writes the whole serialized response to w.
func (r *HttpResponse) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.ResponseBody)
	return int64(n), err
}

// Options tunes how responses are built.
type Options struct {
	// SortEntries lists directory entries in lexicographic order instead of
	// the order the filesystem returns them.
	SortEntries bool
	// StrictLineEndings terminates every header line with CRLF.
	StrictLineEndings bool
	// MimeTypes supplies extension overrides for files with no known signature.
	MimeTypes *MimeTypeResolver
}

// Responder builds responses for paths under a fixed document root.
// It holds no mutable state and is safe for concurrent use.
type Responder struct {
	root string
	opts Options
	log  *logger.Logger

	// Filesystem reads made after classification. Tests swap these to
	// change the tree between the stat and the read.
	readFile func(name string) ([]byte, error)
	readDir  func(dir string) ([]string, error)
}

// NewResponder creates a Responder serving root. An empty root means the
// current working directory. A nil logger discards output.
func NewResponder(root string, opts Options, lg *logger.Logger) (*Responder, error) {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	canonical, err := canonicalRoot(root)
	if err != nil {
		return nil, err
	}
	return &Responder{
		root:     canonical,
		opts:     opts,
		log:      lg,
		readFile: os.ReadFile,
		readDir:  readDirNames,
	}, nil
}

// NewResponderFromConfig creates a Responder from a loaded configuration,
// including any custom MIME type mappings it names.
func NewResponderFromConfig(cfg *config.Config, lg *logger.Logger) (*Responder, error) {
	if cfg == nil {
		return nil, errors.New("response: configuration cannot be nil")
	}
	var opts Options
	var inline map[string]string
	if rc := cfg.Response; rc != nil {
		opts.SortEntries = rc.SortEntries != nil && *rc.SortEntries
		opts.StrictLineEndings = rc.StrictLineEndings != nil && *rc.StrictLineEndings
		inline = rc.MimeTypes
	}
	mimeTypes, err := NewMimeTypeResolver(inline, cfg.ResolveMimeTypesPath())
	if err != nil {
		return nil, err
	}
	opts.MimeTypes = mimeTypes

	root := ""
	if cfg.Server != nil {
		root = cfg.Server.DocumentRoot
	}
	return NewResponder(root, opts, lg)
}

// Root returns the canonical document root.
func (r *Responder) Root() string { return r.root }

// New builds the response for req against the current working directory with
// default options.
func New(req *request.HttpRequest) (*HttpResponse, error) {
	r, err := NewResponder("", Options{}, nil)
	if err != nil {
		return nil, err
	}
	return r.Respond(req)
}

// Respond resolves the request path and builds the matching response. Missing
// resources yield a 404 response; the returned error is reserved for I/O
// failures on resources that do exist.
func (r *Responder) Respond(req *request.HttpRequest) (*HttpResponse, error) {
	if req == nil {
		return nil, errors.New("response: nil request")
	}

	target, err := resolve(r.root, req.Resource.Path)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Resolved request path", logger.LogFields{
		"path":       target.CurrentPath,
		"target":     target.Path,
		"depth":      target.Depth,
		"root_depth": target.RootDepth,
		"absent":     target.Absent,
	})

	kind, err := classify(target)
	if err != nil {
		return nil, err
	}

	var b *body
	switch kind {
	case kindFile:
		b, err = r.buildFile(target)
	case kindDirectory:
		b, err = r.buildListing(target)
	default:
		b = buildNotFound()
	}
	if err != nil {
		return nil, err
	}

	return assemble(target.CurrentPath, b, r.opts.StrictLineEndings), nil
}

type targetKind int

const (
	kindMissing targetKind = iota
	kindFile
	kindDirectory
)

// classify picks exactly one builder for t. Special files count as missing.
func classify(t *ResolvedTarget) (targetKind, error) {
	if t.Absent {
		return kindMissing, nil
	}
	fi, err := os.Stat(t.Path)
	if err != nil {
		if isAbsent(err) {
			return kindMissing, nil
		}
		return kindMissing, fmt.Errorf("failed to stat %q: %w", t.Path, err)
	}
	switch {
	case fi.Mode().IsRegular():
		return kindFile, nil
	case fi.IsDir():
		return kindDirectory, nil
	}
	return kindMissing, nil
}

// body is the output of one of the builders, before serialization.
type body struct {
	status       Status
	acceptRanges AcceptRanges
	contentType  string
	data         []byte
}
