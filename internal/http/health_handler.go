package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process liveness and storage reachability.
type HealthHandler struct {
	store     pinger
	version   string
	now       func() time.Time
	startedAt time.Time
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler builds a health handler. now may be nil.
func NewHealthHandler(store pinger, version string, now func() time.Time, logger *slog.Logger) *HealthHandler {
	if now == nil {
		now = time.Now
	}
	base := defaultLogger(logger)
	return &HealthHandler{
		store:     store,
		version:   version,
		now:       now,
		startedAt: now(),
		responder: newResponder(base),
		logger:    base,
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Timestamp     string  `json:"timestamp"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Storage       string  `json:"storage"`
	Version       string  `json:"version,omitempty"`
}

// Health answers GET /health and GET /.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	resp := healthResponse{
		Status:        "healthy",
		Timestamp:     now.UTC().Format(time.RFC3339),
		UptimeSeconds: now.Sub(h.startedAt).Seconds(),
		Storage:       "ok",
		Version:       h.version,
	}

	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		handlerLogger(r.Context(), h.logger, "HealthHandler", "Health").
			ErrorContext(r.Context(), "storage ping failed", "error", err, "error_kind", errorKind(err))
		resp.Status = "unhealthy"
		resp.Storage = "error"
		status = http.StatusServiceUnavailable
	}
	h.responder.writeJSON(r.Context(), w, status, resp)
}
