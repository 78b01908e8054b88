package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/crmbridge/internal/crm"
)

type cacheAdmin interface {
	GetCacheStats(ctx context.Context) (crm.CacheStats, error)
	ClearCache(ctx context.Context) (int, error)
}

type cacheSweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// AdminHandler exposes cache statistics and cache maintenance.
type AdminHandler struct {
	cache     cacheAdmin
	sweeper   cacheSweeper
	responder responder
	logger    *slog.Logger
}

func NewAdminHandler(cache cacheAdmin, sweeper cacheSweeper, logger *slog.Logger) *AdminHandler {
	base := defaultLogger(logger)
	return &AdminHandler{cache: cache, sweeper: sweeper, responder: newResponder(base), logger: base}
}

func (h *AdminHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AdminHandler", operation, attrs...)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.GetCacheStats(r.Context())
	if err != nil {
		h.log(r.Context(), "Stats").ErrorContext(r.Context(), "failed to read cache stats", "error", err, "error_kind", errorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "ClearCache")

	cleared, err := h.cache.ClearCache(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to clear cache", "error", err, "error_kind", errorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("cleared", cleared).InfoContext(r.Context(), "cache cleared")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]int{"cleared": cleared})
}

func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	removed, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		h.log(r.Context(), "Sweep").ErrorContext(r.Context(), "cache sweep failed", "error", err, "error_kind", errorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]int{"removed": removed})
}
