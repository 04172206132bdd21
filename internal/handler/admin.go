package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/push"
)

// AdminStore is the persistence used by admin notification endpoints.
type AdminStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	TokenStats(ctx context.Context) (*model.TokenStats, error)
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
}

// AdminHandler serves admin notification management.
type AdminHandler struct {
	store     AdminStore
	pusher    Pusher
	validator *middleware.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store AdminStore, pusher Pusher, validator *middleware.Validator, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{
		store:     store,
		pusher:    pusher,
		validator: validator,
		logger:    logger.With("component", "admin_handler"),
		now:       time.Now,
	}
}

// CreateNotification stores a notification and either sends it now or
// schedules it when scheduled_at is in the future.
//
// POST /api/v1/admin/notifications
func (h *AdminHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateNotificationRequest
	if !bind(w, r, h.validator, &req) {
		return
	}

	details := make(map[string]string)
	if req.ImageURL != "" {
		if err := push.ValidateImageURL(req.ImageURL); err != nil {
			details["image_url"] = err.Error()
		}
	}
	if req.DeepLink != "" {
		if err := push.ValidateDeepLink(req.DeepLink); err != nil {
			details["deep_link"] = err.Error()
		}
	}
	if len(details) > 0 {
		writeDetails(w, details)
		return
	}

	actor := auth.SubjectFromContext(r.Context())
	now := h.now().UTC()

	n := &model.Notification{
		Title:          req.Title,
		Body:           req.Body,
		ImageURL:       optional(req.ImageURL),
		DeepLink:       optional(req.DeepLink),
		TargetPlatform: req.TargetPlatform,
		Status:         model.NotificationDraft,
		CreatedBy:      actor,
		CreatedAt:      now,
	}
	if n.TargetPlatform == "" {
		n.TargetPlatform = model.TargetAll
	}
	scheduled := req.ScheduledAt != nil && req.ScheduledAt.After(now)
	if scheduled {
		at := req.ScheduledAt.UTC()
		n.Status = model.NotificationScheduled
		n.ScheduledAt = &at
	}

	if err := h.store.CreateNotification(r.Context(), n); err != nil {
		h.logger.Error("failed to create notification", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create notification")
		return
	}

	if scheduled {
		h.audit(r.Context(), actor, model.AuditNotificationScheduled, n.ID, map[string]any{
			"title":        n.Title,
			"scheduled_at": n.ScheduledAt,
		})
		writeJSON(w, http.StatusCreated, dto.NotificationResponse{Notification: n})
		return
	}

	totals, err := h.pusher.Send(r.Context(), n.ID)
	if err != nil {
		h.logger.Error("failed to send notification", "notification_id", n.ID, "error", err)
		writeError(w, http.StatusBadGateway, "PUSH_FAILED", "Notification saved but sending failed")
		return
	}
	n.Status = model.NotificationSent
	if totals.Sent == 0 {
		n.Status = model.NotificationFailed
	}
	n.SentAt = &now

	h.audit(r.Context(), actor, model.AuditNotificationSent, n.ID, map[string]any{
		"title":  n.Title,
		"target": n.TargetPlatform,
		"sent":   totals.Sent,
		"failed": totals.Failed,
	})

	writeJSON(w, http.StatusCreated, dto.NotificationResponse{
		Notification: n,
		Sent:         &totals.Sent,
		Failed:       &totals.Failed,
	})
}

// TokenStats returns enabled token counts per platform.
//
// GET /api/v1/admin/push-tokens/stats
func (h *AdminHandler) TokenStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.TokenStats(r.Context())
	if err != nil {
		h.logger.Error("failed to load token stats", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load token stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) audit(ctx context.Context, actor, action, notificationID string, metadata map[string]any) {
	if actor == "" {
		actor = model.SystemActorID
	}
	err := h.store.InsertAudit(ctx, &model.AuditEntry{
		Action:       action,
		ActorID:      actor,
		ResourceType: model.ResourcePush,
		ResourceID:   &notificationID,
		Metadata:     metadata,
		CreatedAt:    h.now().UTC(),
	})
	if err != nil {
		h.logger.Warn("failed to write audit entry", "action", action, "error", err)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
