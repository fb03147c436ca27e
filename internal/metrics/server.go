package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const defaultPort = 8088

// Config holds metrics server configuration
type Config struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled,omitempty"`
	Host    string `mapstructure:"host" json:"host,omitempty"`
	Port    int    `mapstructure:"port" json:"port,omitempty"`
	Token   string `mapstructure:"token" json:"token,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Host:    "0.0.0.0",
		Port:    defaultPort,
	}
}

func (c Config) addr() string {
	port := c.Port
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Server exposes the prometheus registry over HTTP
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

func bearerAuth(handler http.Handler, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// Handler builds the /metrics and /health mux without starting a listener.
func Handler(cfg Config, registry *prometheus.Registry) http.Handler {
	var metricsHandler http.Handler = promhttp.Handler()
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	if cfg.Token != "" {
		metricsHandler = bearerAuth(metricsHandler, cfg.Token)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func NewServer(cfg Config, logger *logrus.Logger, registry *prometheus.Registry) *Server {
	if cfg.Token != "" {
		logger.Info("Metrics endpoint authentication enabled")
	}
	return &Server{
		server: &http.Server{
			Addr:         cfg.addr(),
			Handler:      Handler(cfg, registry),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		logger: logger,
	}
}

// Start serves in a goroutine
func (s *Server) Start() {
	go func() {
		s.logger.Infof("Starting metrics server on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Metrics server failed: %v", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.logger.Info("Shutting down metrics server")
	return s.server.Shutdown(ctx)
}

// StartMetricsServer registers the given services and starts serving. It
// returns nil when metrics are disabled.
func StartMetricsServer(cfg Config, services []string, logger *logrus.Logger) *Server {
	if !cfg.Enabled {
		logger.Info("Metrics server disabled")
		return nil
	}

	registry := prometheus.NewRegistry()
	RegisterMetrics(services, registry, logger)

	server := NewServer(cfg, logger, registry)
	server.Start()
	return server
}
