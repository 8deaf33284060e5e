package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/service"
)

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	return r
}

func TestReadyReportsFailingChecks(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	r := newMetricsRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.NotContains(t, w.Body.String(), "database")
}

func TestReadyAndHealthOK(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"database": PingFunc(func(context.Context) error { return nil }),
	})
	r := newMetricsRouter(h)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordUpload("accepted")
	r := newMetricsRouter(NewMetricsHandler(metrics, nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `document_uploads_total{outcome="accepted"} 1`)
}
