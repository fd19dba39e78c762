package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Pinger reports whether the remote workspace answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db        *sql.DB
	workspace Pinger
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db is nil when drafts are
// kept in memory.
func NewHealthHandler(db *sql.DB, workspace Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		workspace: workspace,
		logger:    logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only - always returns 200 if the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	switch {
	case h.db == nil:
		checks["database"] = "not_configured"
	case h.checkDatabase(ctx) != nil:
		checks["database"] = "unhealthy"
		ready = false
	default:
		checks["database"] = "healthy"
	}

	switch {
	case h.workspace == nil:
		checks["workspace"] = "not_initialized"
		ready = false
	default:
		if err := h.workspace.Ping(ctx); err != nil {
			h.logger.Warn("workspace health check failed", zap.Error(err))
			checks["workspace"] = "unhealthy"
			ready = false
		} else {
			checks["workspace"] = "healthy"
		}
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if err := utils.WriteJSON(w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		return err
	}

	return nil
}
