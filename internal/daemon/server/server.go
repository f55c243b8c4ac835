// Package server provides the TCP build daemon. A client sends one JSON
// build request, half-closes its write side and reads one JSON response.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/grovetools/uireload/errors"
	"github.com/grovetools/uireload/pkg/build"
	"github.com/sirupsen/logrus"
)

// maxRequestSize caps how much of a request is read.
const maxRequestSize = 1 << 20

// Server runs builds on behalf of hot reload clients, one at a time.
type Server struct {
	logger  *logrus.Entry
	builder build.Builder
	target  string
	timeout time.Duration

	// buildCtx is cancelled when Shutdown gives up waiting.
	buildCtx    context.Context
	cancelBuild context.CancelFunc

	// buildMu serializes builds; the build tool shares one output dir.
	buildMu sync.Mutex

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	closed   bool
	builds   int
}

// Option configures a Server.
type Option func(*Server)

// WithBuildTimeout bounds every build the daemon runs. Zero means no bound.
func WithBuildTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New returns a daemon building with builder. Requests naming a target other
// than target are refused; an empty target accepts any.
func New(builder build.Builder, target string, logger *logrus.Entry, opts ...Option) *Server {
	s := &Server{
		logger:  logger,
		builder: builder,
		target:  target,
		conns:   make(map[net.Conn]struct{}),
	}
	s.buildCtx, s.cancelBuild = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on addr (host:port) and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener. It returns nil after Shutdown.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.WithField("addr", listener.Addr().String()).Info("Build daemon listening")
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Builds returns the number of builds run.
func (s *Server) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

// Shutdown stops accepting and waits for in-flight requests. When ctx ends
// first the running build is cancelled and the remaining connections are
// closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down build daemon...")
	s.mu.Lock()
	s.closed = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancelBuild()
		return nil
	case <-ctx.Done():
		s.cancelBuild()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		<-done
		return ctx.Err()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.wg.Done()
	}()

	logger := s.logger.WithField("remote", conn.RemoteAddr().String())
	resp, ok := s.respond(conn, logger)
	if !ok {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		logger.WithError(err).Error("Failed to encode response")
		return
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		logger.WithError(err).Warn("Failed to write response")
	}
}

// respond reads one request and runs it. An empty request is a liveness
// probe and gets no reply.
func (s *Server) respond(conn net.Conn, logger *logrus.Entry) (build.Response, bool) {
	body, err := io.ReadAll(io.LimitReader(conn, maxRequestSize))
	if err != nil {
		return build.Response{Error: fmt.Sprintf("read request: %v", err)}, true
	}
	if len(bytes.TrimSpace(body)) == 0 {
		logger.Debug("Probe connection")
		return build.Response{}, false
	}
	var req build.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return build.Response{Error: fmt.Sprintf("invalid request: %v", err)}, true
	}
	if err := s.check(req); err != nil {
		logger.WithError(err).Warn("Rejected build request")
		return build.Response{Error: err.Error()}, true
	}

	logger = logger.WithField("stem", req.OutputName)
	s.buildMu.Lock()
	start := time.Now()
	err = s.build(req.OutputName)
	s.buildMu.Unlock()

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.WithError(err).WithField("elapsed", elapsed).Warn("Build failed")
		return build.Response{Error: err.Error()}, true
	}
	logger.WithField("elapsed", elapsed).Info("Build finished")
	return build.Response{Success: true}, true
}

func (s *Server) build(stem string) error {
	ctx := s.buildCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err := s.builder.Build(ctx, stem)
	if err != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.BuildTimeout(stem, s.timeout.String())
	}
	return err
}

func (s *Server) check(req build.Request) error {
	if !req.Dynamic {
		return fmt.Errorf("only dynamic builds are served")
	}
	if req.OutputName == "" {
		return fmt.Errorf("output_name is required")
	}
	if s.target != "" && req.Target != "" && req.Target != s.target {
		return fmt.Errorf("target %q not served (daemon builds %q)", req.Target, s.target)
	}
	return nil
}
