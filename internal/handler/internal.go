package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noorapp/noor/internal/content"
	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/notify"
	"github.com/noorapp/noor/internal/push"
	"github.com/noorapp/noor/internal/repository"
)

// Dispatcher runs one prayer reminder pass.
type Dispatcher interface {
	Run(ctx context.Context, now time.Time) (*notify.RunResult, error)
}

// ContentPublisher publishes due content and sends due notifications.
type ContentPublisher interface {
	PublishDue(ctx context.Context, now time.Time) (*content.PublishResult, error)
	SendDueNotifications(ctx context.Context, now time.Time) (*content.NotificationResult, error)
}

// Pusher fans a stored notification out to device tokens.
type Pusher interface {
	Send(ctx context.Context, notificationID string) (*push.SendTotals, error)
}

// InternalHandler exposes the scheduler triggers. The background workers
// run the same passes; these routes let an external cron drive them.
type InternalHandler struct {
	dispatcher Dispatcher
	publisher  ContentPublisher
	pusher     Pusher
	logger     *slog.Logger
	now        func() time.Time
}

// NewInternalHandler creates an InternalHandler.
func NewInternalHandler(dispatcher Dispatcher, publisher ContentPublisher, pusher Pusher, logger *slog.Logger) *InternalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalHandler{
		dispatcher: dispatcher,
		publisher:  publisher,
		pusher:     pusher,
		logger:     logger.With("component", "internal_handler"),
		now:        time.Now,
	}
}

// DispatchPrayerNotifications runs one dispatch pass.
//
// POST /internal/prayer-notifications/dispatch
func (h *InternalHandler) DispatchPrayerNotifications(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Run(r.Context(), h.now())
	if err != nil {
		h.logger.Error("prayer dispatch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "DISPATCH_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PublishContent publishes due content and sends due notifications.
//
// POST /internal/content/publish
func (h *InternalHandler) PublishContent(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	published, err := h.publisher.PublishDue(r.Context(), now)
	if err != nil {
		h.logger.Error("scheduled publish failed", "error", err)
		writeError(w, http.StatusInternalServerError, "PUBLISH_FAILED", err.Error())
		return
	}

	sent, err := h.publisher.SendDueNotifications(r.Context(), now)
	if err != nil {
		h.logger.Error("scheduled notifications failed", "error", err)
		writeError(w, http.StatusInternalServerError, "PUBLISH_FAILED", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       published.Message,
		"count":         published.Count,
		"results":       published.Results,
		"notifications": sent,
	})
}

// SendPush sends a stored notification to all matching tokens.
//
// POST /internal/push/{notificationID}
func (h *InternalHandler) SendPush(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")

	totals, err := h.pusher.Send(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
			return
		}
		h.logger.Error("push send failed", "notification_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "PUSH_FAILED", "Failed to send notification")
		return
	}

	writeJSON(w, http.StatusOK, dto.PushSendResponse{
		NotificationID: id,
		Sent:           totals.Sent,
		Failed:         totals.Failed,
	})
}
