package logging

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware writes one structured line per request. Health probes are not logged.
func LoggerMiddleware(logger *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			if c.Path() == "/healthz" {
				return nil
			}

			latency := time.Since(start)
			entry := logger.WithFields(logrus.Fields{
				"remote_ip":  c.RealIP(),
				"method":     req.Method,
				"uri":        req.RequestURI,
				"route":      c.Path(),
				"status":     c.Response().Status,
				"latency_us": latency.Microseconds(),
				"bytes_out":  c.Response().Size,
			})
			if id := c.Param("id"); id != "" {
				entry = entry.WithField("agreement_id", id)
			}
			if c.Response().Status >= 500 {
				entry.Warn("HTTP request")
			} else {
				entry.Info("HTTP request")
			}
			return nil
		}
	}
}
