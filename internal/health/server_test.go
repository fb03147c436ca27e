package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func probe(s *Server) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	return rec
}

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	assert.Equal(t, http.StatusOK, probe(New(0, map[string]Check{"postgres": ok})).Code)
	assert.Equal(t, http.StatusOK, probe(New(0, nil)).Code)

	down := func(context.Context) error { return errors.New("connection refused") }
	rec := probe(New(0, map[string]Check{"postgres": ok, "redis": down}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis: connection refused")
}
