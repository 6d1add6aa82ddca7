package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/net/netutil"

	"example.com/rawhttpd/internal/config"
	"example.com/rawhttpd/internal/logger"
	"example.com/rawhttpd/internal/request"
	"example.com/rawhttpd/internal/util"
)

// Server accepts TCP connections and answers exactly one request on each.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	handler Handler

	mu          sync.Mutex
	listener    net.Listener
	activeConns map[net.Conn]struct{}
	conns       sync.WaitGroup

	shuttingDown atomic.Bool
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, lg *logger.Logger, handler Handler) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Server == nil {
		return nil, fmt.Errorf("server configuration section (server) is missing")
	}
	if lg == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	return &Server{
		cfg:         cfg,
		log:         lg,
		handler:     handler,
		activeConns: make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the address the server is accepting on, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start listens on the configured address and serves until SIGINT or SIGTERM,
// then shuts down gracefully within server.graceful_shutdown_timeout.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if s.cfg.Server.Address == nil || *s.cfg.Server.Address == "" {
		return fmt.Errorf("server listen address (server.address) is not configured")
	}
	address := *s.cfg.Server.Address

	ln, err := util.CreateListener(ctx, "tcp", address)
	if err != nil {
		if util.IsAddrInUse(err) {
			s.log.Error("Listen address already in use", logger.LogFields{"address": address})
		}
		return err
	}
	s.log.Info("Server listening", logger.LogFields{
		"address":         ln.Addr().String(),
		"max_connections": s.maxConnections(),
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.Serve(context.Background(), ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, draining connections", logger.LogFields{
			"timeout": s.gracefulShutdownTimeout().String(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.gracefulShutdownTimeout())
	defer cancel()
	err = s.Shutdown(shutdownCtx)
	if serr := <-serveErr; serr != nil && !errors.Is(serr, ErrServerClosed) {
		err = multierr.Append(err, serr)
	}
	if err == nil {
		s.log.Info("Server stopped", nil)
	}
	return err
}

// Serve accepts connections on ln until Shutdown is called or ctx is done,
// then returns ErrServerClosed. Serve takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if limit := s.maxConnections(); limit > 0 {
		ln = netutil.LimitListener(ln, limit)
	}

	s.mu.Lock()
	if s.shuttingDown.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	serveDone := make(chan struct{})
	defer close(serveDone)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-serveDone:
		}
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown.Load() || ctx.Err() != nil {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn("Temporary accept error, retrying", logger.LogFields{
					"error": err.Error(), "retry_in": backoff.String(),
				})
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		backoff = 0

		if !s.trackConn(conn, true) {
			conn.Close()
			return ErrServerClosed
		}
		go s.handleConnection(conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// Shutdown stops accepting, then waits for in-flight connections. If ctx ends
// first, the remaining connections are closed and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown.Store(true)
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		if cerr := ln.Close(); !isExpectedCloseErr(cerr) {
			err = multierr.Append(err, fmt.Errorf("failed to close listener: %w", cerr))
		}
	}

	drained := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		s.mu.Lock()
		remaining := len(s.activeConns)
		for c := range s.activeConns {
			if cerr := c.Close(); !isExpectedCloseErr(cerr) {
				err = multierr.Append(err, cerr)
			}
		}
		s.mu.Unlock()
		s.log.Warn("Graceful shutdown timed out, closed remaining connections", logger.LogFields{
			"connections": remaining,
		})
		err = multierr.Append(err, ctx.Err())
	}
	return err
}

// trackConn adds or removes c from the active set. Adding fails once shutdown
// has begun.
func (s *Server) trackConn(c net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shuttingDown.Load() {
			return false
		}
		s.activeConns[c] = struct{}{}
		s.conns.Add(1)
		return true
	}
	if _, ok := s.activeConns[c]; ok {
		delete(s.activeConns, c)
		s.conns.Done()
	}
	return true
}

// handleConnection reads one request, writes its response and closes conn.
func (s *Server) handleConnection(conn net.Conn) {
	start := time.Now()
	defer s.trackConn(conn, false)
	defer conn.Close()

	fields := logger.LogFields{
		"conn_id":     uuid.NewString(),
		"remote_addr": conn.RemoteAddr().String(),
	}

	if d := s.readTimeout(); d > 0 {
		_ = conn.SetReadDeadline(start.Add(d))
	}
	req, err := request.ParseRequest(bufio.NewReader(conn), s.maxHeaderBytes())
	if err != nil {
		kind := connErrorKind(err)
		fields["reason"] = kind
		fields["error"] = err.Error()
		if kind == "client_closed" || kind == "timeout" {
			s.log.Debug("Connection closed before a complete request", fields)
		} else {
			s.log.Warn("Rejected request", fields)
		}
		return
	}
	fields["method"] = req.Method
	fields["path"] = req.Resource.Path

	resp, err := s.handler.Respond(req)
	if err != nil {
		fields["error"] = err.Error()
		s.log.Error("Failed to build response", fields)
		return
	}

	payload := resp.ResponseBody
	if req.Method == "HEAD" {
		payload = resp.Head()
	}
	if d := s.writeTimeout(); d > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(d))
	}
	n, err := conn.Write(payload)
	if err != nil {
		fields["error"] = err.Error()
		fields["reason"] = connErrorKind(err)
		s.log.Warn("Failed to write response", fields)
	}

	s.log.Access(logger.AccessEntry{
		ConnID:        fields["conn_id"].(string),
		RemoteAddr:    conn.RemoteAddr().String(),
		Method:        req.Method,
		Path:          req.Resource.Path,
		Protocol:      req.Version.String(),
		Status:        resp.Status.Code(),
		ResponseBytes: int64(n),
		Duration:      time.Since(start),
	})
}

func (s *Server) maxConnections() int {
	if s.cfg.Server.MaxConnections == nil {
		return 0
	}
	return *s.cfg.Server.MaxConnections
}

func (s *Server) maxHeaderBytes() int {
	if s.cfg.Server.MaxHeaderBytes == nil {
		return 0
	}
	return *s.cfg.Server.MaxHeaderBytes
}

func (s *Server) readTimeout() time.Duration {
	if s.cfg.Server.ReadTimeout == nil {
		return 0
	}
	return s.cfg.Server.ReadTimeout.Duration
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.Server.WriteTimeout == nil {
		return 0
	}
	return s.cfg.Server.WriteTimeout.Duration
}

func (s *Server) gracefulShutdownTimeout() time.Duration {
	if s.cfg.Server.GracefulShutdownTimeout == nil {
		return 0
	}
	return s.cfg.Server.GracefulShutdownTimeout.Duration
}
