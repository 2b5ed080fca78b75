package server

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"pubsub2inbox/internal/common/logging"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish
const ShutdownTimeout = 30 * time.Second

// Server represents an HTTP server
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// New creates a new server instance listening on addr
func New(handler http.Handler, addr string, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// pipeline runs can call slow model endpoints before answering
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger.WithFields(logging.String("component", "server")),
	}
}

// Run serves until ctx is done and then shuts down gracefully. It returns
// nil after a clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", logging.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Server exited")
	return nil
}
