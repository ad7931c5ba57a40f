package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter int

func (c counter) Len() int { return int(c) }

func readiness(t *testing.T, h *HealthHandler) (int, HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func pingOK(context.Context) error { return nil }

func TestReadiness_Healthy(t *testing.T) {
	h := NewHealthHandler(PingFunc(pingOK), counter(2), counter(3), "v1").
		WithDependency("ledger", PingFunc(pingOK))

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "2", body.Checks["live_matches"])
	assert.Equal(t, "3", body.Checks["seated_sockets"])
	assert.Equal(t, "healthy", body.Checks["ledger"])
}

func TestReadiness_DegradedDependencyKeepsServing(t *testing.T) {
	h := NewHealthHandler(PingFunc(pingOK), counter(0), counter(0), "v1").
		WithDependency("ledger", PingFunc(func(context.Context) error { return errors.New("ledger not configured") })).
		WithDependency("redis", PingFunc(pingOK))

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "degraded: ledger not configured", body.Checks["ledger"])
	assert.Equal(t, "healthy", body.Checks["redis"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(PingFunc(func(context.Context) error { return errors.New("refused") }), counter(0), counter(0), "v1").
		WithDependency("ledger", PingFunc(func(context.Context) error { return errors.New("down") }))

	code, body := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy: refused", body.Checks["database"])
}
