package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RoomCounter reports live matches and seated sockets.
type RoomCounter interface {
	Len() int
}

type dependency struct {
	name string
	p    Pinger
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        Pinger
	rooms     RoomCounter
	sockets   RoomCounter
	deps      []dependency
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, rooms, sockets RoomCounter, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rooms:     rooms,
		sockets:   sockets,
		startTime: time.Now(),
		version:   version,
	}
}

// WithDependency adds a collaborator that gameplay survives without, such as
// the ledger or Redis. A failing dependency makes readiness "degraded" but
// keeps it at 200.
func (h *HealthHandler) WithDependency(name string, p Pinger) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, p: p})
	return h
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	// Database check
	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	// Memory check
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	checks["memory_alloc_mb"] = formatMB(m.Alloc)
	checks["live_matches"] = fmt.Sprint(h.rooms.Len())
	checks["seated_sockets"] = fmt.Sprint(h.sockets.Len())

	degraded := false
	for _, d := range h.deps {
		if err := d.p.Ping(ctx); err != nil {
			checks[d.name] = "degraded: " + err.Error()
			degraded = true
		} else {
			checks[d.name] = "healthy"
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	switch {
	case !allHealthy:
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// Health is a combined endpoint for basic health checks
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	// Quick database ping
	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "database unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

func formatMB(bytes uint64) string {
	mb := float64(bytes) / 1024 / 1024
	return fmt.Sprintf("%.2f", mb)
}
