package rest

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/frahmantamala/payment-core/internal/transport"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// GatewayLister reports the payment gateways registered at startup.
type GatewayLister interface {
	GatewayIDs() []string
}

type HealthHandler struct {
	*transport.BaseHandler
	db       *sql.DB
	gateways GatewayLister
}

func NewHealthHandler(base *transport.BaseHandler, db *sql.DB, gateways GatewayLister) *HealthHandler {
	return &HealthHandler{BaseHandler: base, db: db, gateways: gateways}
}

// pingHandler reports liveness only.
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// healthCheckHandler checks the database and the gateway registry.
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]CheckEntry{
		"postgres": h.checkDatabase(ctx),
		"gateways": h.checkGateways(),
	}

	status := HealthHealthy
	for _, entry := range components {
		if entry.Status == HealthUnhealthy {
			status = HealthUnhealthy
			break
		}
		if entry.Status == HealthDegraded {
			status = HealthDegraded
		}
	}

	statusCode := http.StatusOK
	if status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	h.WriteJSON(w, statusCode, HealthResponse{
		Status:     status,
		CheckedAt:  time.Now(),
		Components: components,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckEntry {
	start := time.Now()
	err := h.db.PingContext(ctx)

	entry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = HealthUnhealthy
		entry.Message = err.Error()
	}
	return entry
}

// checkGateways is degraded, not unhealthy, without gateways: manual
// deposits and refunds still work.
func (h *HealthHandler) checkGateways() CheckEntry {
	entry := CheckEntry{
		Status:    HealthHealthy,
		CheckedAt: time.Now(),
	}
	if h.gateways == nil {
		entry.Status = HealthDegraded
		entry.Message = "no gateway registry"
		return entry
	}

	ids := h.gateways.GatewayIDs()
	entry.Details = map[string]any{"registered": ids}
	if len(ids) == 0 {
		entry.Status = HealthDegraded
		entry.Message = "no payment gateways registered"
	}
	return entry
}
