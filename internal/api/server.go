package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/schedpay/internal/logging"
	"github.com/vultisig/schedpay/internal/metrics"
	"github.com/vultisig/schedpay/internal/service"
	"github.com/vultisig/schedpay/reconcile"
)

// Resolver is implemented by *service.Reconciler.
type Resolver interface {
	Reconcile(ctx context.Context, id uuid.UUID, opts service.Options) (reconcile.Resolution, error)
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

type Server struct {
	addr       string
	logger     *logrus.Logger
	resolver   Resolver
	notFound   error
	echo       *echo.Echo
	reqTimeout time.Duration
}

// NewServer wires routes. notFound is the store's missing-record error and maps to 404.
func NewServer(host string, port int64, logger *logrus.Logger, resolver Resolver, notFound error) *Server {
	s := &Server{
		addr:       fmt.Sprintf("%s:%d", host, port),
		logger:     logger.WithField("pkg", "api.Server").Logger,
		resolver:   resolver,
		notFound:   notFound,
		reqTimeout: 30 * time.Second,
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &requestValidator{validator: validator.New()}
	e.Use(middleware.Recover())
	e.Use(logging.LoggerMiddleware(s.logger))
	e.Use(metrics.NewHTTPMetrics().Middleware())
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 20, Burst: 60, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.GET("/healthz", s.Healthz)
	agreements := e.Group("/agreements")
	agreements.GET("/:id/status", s.GetStatus)
	agreements.GET("/:id/timeline", s.GetTimeline)

	s.echo = e
	return s
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) StartServer() error {
	s.logger.Infof("Starting api server on %s", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("echo.Start: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
