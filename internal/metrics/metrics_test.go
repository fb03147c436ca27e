package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetrics_Idempotent(t *testing.T) {
	registry := prometheus.NewRegistry()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	services := []string{ServiceReconcile, ServiceChain, ServiceWorker, ServiceHTTP}
	RegisterMetrics(services, registry, logger)
	RegisterMetrics(services, registry, logger)

	NewReconcileMetrics().RecordResolution("recurring", "active", []string{"executed", "pending"})
	families, err := registry.Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "schedpay_reconcile_resolutions_total")
	assert.Contains(t, names, "schedpay_reconcile_installments_total")
}

func TestWithWorkerMetrics(t *testing.T) {
	wm := NewWorkerMetrics()
	before := testutil.ToFloat64(workerTasksTotal.WithLabelValues("test:task", "skipped"))

	h := WithWorkerMetrics(func(context.Context, *asynq.Task) error {
		return errors.Join(errors.New("bad payload"), asynq.SkipRetry)
	}, "test:task", wm)
	err := h.ProcessTask(context.Background(), asynq.NewTask("test:task", nil))
	require.Error(t, err)

	after := testutil.ToFloat64(workerTasksTotal.WithLabelValues("test:task", "skipped"))
	assert.Equal(t, before+1, after)
}

func TestWithWorkerMetrics_Disabled(t *testing.T) {
	called := false
	h := WithWorkerMetrics(func(context.Context, *asynq.Task) error {
		called = true
		return nil
	}, "test:task", nil)
	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask("test:task", nil)))
	assert.True(t, called)
}

func TestHandler_BearerAuth(t *testing.T) {
	h := Handler(Config{Token: "secret"}, prometheus.NewRegistry())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "OK"))
}

func TestConfigAddr(t *testing.T) {
	assert.Equal(t, ":8088", Config{}.addr())
	assert.Equal(t, "127.0.0.1:9000", Config{Host: "127.0.0.1", Port: 9000}.addr())
}
