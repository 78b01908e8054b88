package http

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/crmbridge/internal/crm"
	"github.com/example/crmbridge/internal/persistence"
)

var (
	errMissingPlatformID = errors.New("platform user id is required")
	errMissingEmail      = errors.New("email is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError answers a request rejected before it reached the adapter.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// kindResponses maps crm.ErrorKind labels onto the reply for that kind.
// Remote and storage details stay in the logs.
var kindResponses = map[string]errorResponse{
	"not_found":  {Message: statusMessage(http.StatusNotFound)},
	"remote":     {ErrorCode: "CRM_UNAVAILABLE", Message: "the CRM could not be reached, try again later"},
	"validation": {Message: statusMessage(http.StatusUnprocessableEntity)},
	"storage":    {ErrorCode: "STORAGE_UNAVAILABLE", Message: statusMessage(http.StatusInternalServerError)},
}

var kindStatus = map[string]int{
	"not_found":  http.StatusNotFound,
	"remote":     http.StatusBadGateway,
	"validation": http.StatusUnprocessableEntity,
	"storage":    http.StatusInternalServerError,
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errorKind(err)
	status, ok := kindStatus[kind]
	if !ok {
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
		return
	}

	resp := kindResponses[kind]
	var vErr *persistence.ValidationError
	if errors.As(err, &vErr) {
		resp.Errors = vErr.FieldErrors
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return cmp.Or(LoggerFromContext(ctx), r.logger)
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is invalid"
	case http.StatusNotFound:
		return "no such member in the CRM"
	case http.StatusUnprocessableEntity:
		return "the CRM record conflicts with a cached member"
	case http.StatusServiceUnavailable:
		return "the service is unavailable"
	default:
		return "internal server error"
	}
}

// errorKind labels err as not_found, remote, validation, storage or unexpected.
func errorKind(err error) string {
	return crm.ErrorKind(err)
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
