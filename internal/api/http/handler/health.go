package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/atomic"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health serves liveness and readiness probes.
type Health struct {
	db     Pinger
	ready  atomic.Bool
	logger *logger.Logger
}

// NewHealth creates a Health handler that reports ready until SetReady(false) is called.
func NewHealth(db Pinger, logger *logger.Logger) *Health {
	h := &Health{db: db, logger: logger}
	h.ready.Store(true)
	return h
}

// SetReady toggles readiness, e.g. while draining during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Livez reports that the process is up.
func (h *Health) Livez(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readyz reports whether the instance can serve traffic.
func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Health handler: database not reachable", "error", err)
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
