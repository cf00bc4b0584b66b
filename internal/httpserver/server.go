package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/shopnow-lb/config"
)

const DefaultShutdownTimeout = 10 * time.Second

// Server wraps http.Server with address validation and graceful shutdown.
type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// New creates a server for addr. The address is validated before the server
// is built. A non-positive shutdownTimeout falls back to the default.
func New(addr string, handler http.Handler, shutdownTimeout time.Duration) (*Server, error) {
	if err := validation.Validate(addr, validation.Required, validation.By(config.ValidateHostPort)); err != nil {
		return nil, err
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	// No WriteTimeout: proxied responses are streamed and bounded by the
	// proxy timeout instead.
	srv := &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
	}

	return srv, nil
}

// Start begins listening for HTTP requests.
// Returns an error unless the server is shut down cleanly.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.server.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests,
// giving up after the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
