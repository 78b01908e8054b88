package crm

import (
	"context"
	"log/slog"

	"github.com/example/crmbridge/internal/espo"
	"github.com/example/crmbridge/internal/logging"
	"github.com/example/crmbridge/internal/persistence"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func (a *Adapter) opLogger(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = a.logger
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", ServiceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps adapter errors to a stable logging label.
func ErrorKind(err error) string {
	if espo.IsAPIError(err) {
		return "remote"
	}
	return persistence.ErrorKind(err)
}
