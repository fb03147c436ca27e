package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Server exposes /healthz for processes without an API, such as the worker.
// The probe fails with 503 while any check fails.
type Server struct {
	port   int
	checks map[string]Check
	server *http.Server
}

func New(port int, checks map[string]Check) *Server {
	return &Server{
		port:   port,
		checks: checks,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				http.Error(w, fmt.Sprintf("%s: %v", name, err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Start blocks until ctx is cancelled, then shuts the listener down.
func (s *Server) Start(ctx context.Context, logger *logrus.Logger) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("health server shutdown error: %v", err)
		}
	}()

	logger.Infof("health probe server listening on :%d", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server failed: %w", err)
	}
	return nil
}
