package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/crmbridge/internal/persistence"
)

type memberFinder interface {
	FindMemberByPlatformID(ctx context.Context, platformUserID string) (persistence.MemberRecord, error)
	FindMemberByEmail(ctx context.Context, email string) (persistence.MemberRecord, error)
}

// MemberHandler serves cache-aside member lookups.
type MemberHandler struct {
	finder    memberFinder
	responder responder
	logger    *slog.Logger
}

func NewMemberHandler(finder memberFinder, logger *slog.Logger) *MemberHandler {
	base := defaultLogger(logger)
	return &MemberHandler{finder: finder, responder: newResponder(base), logger: base}
}

func (h *MemberHandler) ByPlatformID(w http.ResponseWriter, r *http.Request, platformUserID string) {
	platformUserID = strings.TrimSpace(platformUserID)
	if platformUserID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPlatformID)
		return
	}
	logger := handlerLogger(r.Context(), h.logger, "MemberHandler", "ByPlatformID", "platform_user_id", platformUserID)

	record, err := h.finder.FindMemberByPlatformID(r.Context(), platformUserID)
	h.respond(r.Context(), w, logger, record, err)
}

func (h *MemberHandler) ByEmail(w http.ResponseWriter, r *http.Request, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingEmail)
		return
	}
	logger := handlerLogger(r.Context(), h.logger, "MemberHandler", "ByEmail", "email", email)

	record, err := h.finder.FindMemberByEmail(r.Context(), email)
	h.respond(r.Context(), w, logger, record, err)
}

func (h *MemberHandler) respond(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, record persistence.MemberRecord, err error) {
	if err != nil {
		if persistence.ErrorKind(err) == "not_found" {
			logger.DebugContext(ctx, "member not found")
		} else {
			logger.ErrorContext(ctx, "member lookup failed", "error", err, "error_kind", errorKind(err))
		}
		h.responder.handleServiceError(ctx, w, err)
		return
	}
	h.responder.writeJSON(ctx, w, http.StatusOK, toMemberDTO(record))
}

type memberDTO struct {
	ID             string                                   `json:"id"`
	PrimaryEmail   *string                                  `json:"primary_email"`
	AlternateEmail *string                                  `json:"alternate_email"`
	PlatformUserID *string                                  `json:"platform_user_id"`
	DisplayName    *string                                  `json:"display_name"`
	MemberType     string                                   `json:"member_type"`
	CreatedAt      time.Time                                `json:"created_at"`
	UpdatedAt      time.Time                                `json:"updated_at"`
	Services       map[string]map[string][]serviceRecordDTO `json:"services"`
}

type serviceRecordDTO struct {
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toMemberDTO(record persistence.MemberRecord) memberDTO {
	m := record.Member
	services := make(map[string]map[string][]serviceRecordDTO, len(record.Services))
	for service, byType := range record.Services {
		services[service] = make(map[string][]serviceRecordDTO, len(byType))
		for entityType, records := range byType {
			list := make([]serviceRecordDTO, 0, len(records))
			for _, rec := range records {
				list = append(list, serviceRecordDTO{EntityID: rec.EntityID, Payload: rec.Payload, UpdatedAt: rec.UpdatedAt})
			}
			services[service][entityType] = list
		}
	}
	return memberDTO{
		ID:             m.ID,
		PrimaryEmail:   m.PrimaryEmail,
		AlternateEmail: m.AlternateEmail,
		PlatformUserID: m.PlatformUserID,
		DisplayName:    m.DisplayName,
		MemberType:     string(m.MemberType),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Services:       services,
	}
}
