package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing service is reachable. The Postgres and
// Redis clients both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	postgres Pinger // optional
	redis    Pinger // optional
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Either Pinger may be nil when
// the corresponding backend is not configured.
func NewHealthHandler(postgres, redis Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{postgres: postgres, redis: redis, logger: logger}
}

// HealthCheck reports liveness plus the reachability of each configured
// backend. The response is 200 as long as the process itself is up; a
// degraded backend shows up in the body rather than the status code so
// orchestrators do not restart the bot over a flaky database.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body["postgres"] = pingStatus(ctx, h.postgres)
	body["redis"] = pingStatus(ctx, h.redis)

	writeJSON(w, http.StatusOK, body)
}

func pingStatus(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unreachable"
	}
	return "ok"
}
