package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/SMSDAO/aaveflashloan/internal/domain"
)

// EventSource tails a durable event stream. *redis.EventStream satisfies it.
type EventSource interface {
	Tail(ctx context.Context, stream string, count int64) ([]domain.StreamMessage, error)
}

// EventsHandler serves the most recent entries of the opportunity and
// settlement event streams. The source may be nil when Redis is not
// configured; the endpoint then returns 501.
type EventsHandler struct {
	events EventSource
	// streams maps the public name in ?stream= to the backing stream key.
	streams map[string]string
	logger  *slog.Logger
}

// NewEventsHandler creates an EventsHandler. streams maps client-facing
// names ("opportunities", "settlements") to stream keys.
func NewEventsHandler(events EventSource, streams map[string]string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, streams: streams, logger: logger}
}

type eventView struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Recent returns the newest entries of one event stream, newest first.
// GET /api/events/recent?stream=opportunities&limit=20
func (h *EventsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "event streams not configured")
		return
	}

	name := r.URL.Query().Get("stream")
	if name == "" {
		name = "opportunities"
	}
	key, ok := h.streams[name]
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown stream "+name)
		return
	}

	limit := parseLimit(r, 20, 200)

	msgs, err := h.events.Tail(r.Context(), key, int64(limit))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: tail events failed",
			slog.String("stream", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	views := make([]eventView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, eventView{ID: m.ID, Payload: json.RawMessage(m.Payload)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stream": name, "events": views})
}
