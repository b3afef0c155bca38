package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dtroode/heirkeeper-server/internal/api/http/response"
	"github.com/dtroode/heirkeeper-server/internal/logger"
	"github.com/dtroode/heirkeeper-server/internal/model"
)

// AuditService defines operator access to the audit outbox.
type AuditService interface {
	ListDeadLetters(ctx context.Context, limit int) ([]model.OutboxItem, error)
	Requeue(ctx context.Context, adminID uuid.UUID, id uuid.UUID) error
}

// Admin handles operator endpoints.
type Admin struct {
	audit          AuditService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAdmin creates a new Admin handler.
func NewAdmin(audit AuditService, contextManager model.ContextManager, logger *logger.Logger) *Admin {
	return &Admin{audit: audit, contextManager: contextManager, logger: logger}
}

type deadLetterResponse struct {
	ID         uuid.UUID        `json:"id"`
	EventType  model.EventType  `json:"eventType"`
	TargetType model.TargetType `json:"targetType"`
	TargetID   uuid.UUID        `json:"targetId"`
	RetryCount int              `json:"retryCount"`
	Error      *string          `json:"error"`
	OccurredAt time.Time        `json:"occurredAt"`
}

type deadLettersResponse struct {
	Items []deadLetterResponse `json:"items"`
}

// ListDeadLetters lists outbox items that exhausted their retries.
func (h *Admin) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	items, err := h.audit.ListDeadLetters(r.Context(), limit)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	resp := deadLettersResponse{Items: make([]deadLetterResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, deadLetterResponse{
			ID:         item.ID,
			EventType:  item.EventType,
			TargetType: item.TargetType,
			TargetID:   item.TargetID,
			RetryCount: item.RetryCount,
			Error:      item.Error,
			OccurredAt: item.OccurredAt,
		})
	}

	response.JSON(w, http.StatusOK, resp)
}

// Requeue returns a dead-lettered item to the pending queue.
func (h *Admin) Requeue(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(w, r, h.contextManager)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, model.NewErrValidation("id must be a UUID"))
		return
	}

	if err := h.audit.Requeue(r.Context(), principal.ID, id); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
