// Package serve runs the local fixture-content HTTP server a scenario
// crawls against.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server serves a fixed directory tree over HTTP on a loopback port.
// It must be listening before the crawl starts and stay available until
// the crawl terminates; Stop is a guaranteed teardown step.
type Server struct {
	dir      string
	listener net.Listener
	srv      *http.Server
}

// New creates a server for the given directory tree. The directory may
// still be empty at this point; content can be materialized after Start
// once the base URL is known.
func New(dir string) *Server {
	return &Server{dir: dir}
}

// Start binds a loopback listener and begins serving. The listener is
// bound synchronously, so URL is valid as soon as Start returns.
func (s *Server) Start() error {
	if s.listener != nil {
		return errors.New("fixture server already started")
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           http.FileServer(http.Dir(s.dir)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// ErrServerClosed is the normal Stop path.
		_ = s.srv.Serve(listener)
	}()

	return nil
}

// URL returns the server's base url, e.g. "http://127.0.0.1:41327".
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Stop shuts the server down. Safe to call on a never-started server, so
// callers can defer it unconditionally.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown fixture server: %w", err)
	}
	return nil
}
