package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
)

// Store is the persistence used by push delivery.
type Store interface {
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	MarkNotification(ctx context.Context, id string, status model.NotificationStatus, sentAt *time.Time) error
	ListTargetTokens(ctx context.Context, target, deviceID string) ([]*model.PushToken, error)
	GetPushToken(ctx context.Context, id string) (*model.PushToken, error)
	DisablePushToken(ctx context.Context, id string) error
	CreateDelivery(ctx context.Context, d *model.PushDelivery) error
	GetPendingDeliveries(ctx context.Context, now time.Time, limit int) ([]*model.PushDelivery, error)
	UpdateDelivery(ctx context.Context, d *model.PushDelivery) error
}

// SendTotals summarizes one fan-out. Queued counts the failed
// deliveries that the retry worker will attempt again.
type SendTotals struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Queued int `json:"queued,omitempty"`
}

// Reached reports whether any delivery was accepted or is still queued
// for retry.
func (t *SendTotals) Reached() bool {
	return t != nil && t.Sent+t.Queued > 0
}

// Service fans a notification out to device tokens.
type Service struct {
	store       Store
	sender      Sender
	logger      *slog.Logger
	metrics     metrics.Recorder
	maxAttempts int
	now         func() time.Time
}

// NewService creates a push Service.
func NewService(store Store, sender Sender, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		store:       store,
		sender:      sender,
		logger:      logger.With("component", "push.service"),
		metrics:     recorder,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

// SetMaxAttempts overrides the per-token attempt limit.
func (s *Service) SetMaxAttempts(n int) {
	if n > 0 {
		s.maxAttempts = n
	}
}

// Send delivers a notification to every enabled token matching its
// target platform.
func (s *Service) Send(ctx context.Context, notificationID string) (*SendTotals, error) {
	return s.send(ctx, notificationID, "")
}

// SendToDevice delivers a notification to the enabled tokens of one
// device, still filtered by the notification's target platform.
func (s *Service) SendToDevice(ctx context.Context, notificationID, deviceID string) (*SendTotals, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	return s.send(ctx, notificationID, deviceID)
}

func (s *Service) send(ctx context.Context, notificationID, deviceID string) (*SendTotals, error) {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("load notification: %w", err)
	}

	tokens, err := s.store.ListTargetTokens(ctx, n.TargetPlatform, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	totals := &SendTotals{}
	for _, token := range tokens {
		if ctx.Err() != nil {
			return totals, ctx.Err()
		}

		d := &model.PushDelivery{
			ID:             ulid.Make().String(),
			NotificationID: n.ID,
			TokenID:        token.ID,
			MaxAttempts:    s.maxAttempts,
		}
		switch {
		case s.attempt(ctx, n, token, d):
			totals.Sent++
		case d.Status == model.DeliveryStatusPending:
			totals.Failed++
			totals.Queued++
		default:
			totals.Failed++
		}

		if err := s.store.CreateDelivery(ctx, d); err != nil {
			s.logger.Error("failed to record delivery",
				"notification_id", n.ID,
				"token_id", token.ID,
				"error", err,
			)
		}
	}

	status := model.NotificationSent
	if totals.Sent == 0 {
		status = model.NotificationFailed
	}
	sentAt := s.now().UTC()
	if err := s.store.MarkNotification(ctx, n.ID, status, &sentAt); err != nil {
		return totals, fmt.Errorf("mark notification: %w", err)
	}

	s.logger.Info("notification sent",
		"notification_id", n.ID,
		"device_id", deviceID,
		"sent", totals.Sent,
		"failed", totals.Failed,
		"queued", totals.Queued,
	)
	return totals, nil
}

// attempt performs one delivery attempt and updates d in place. It
// reports whether the message was accepted.
func (s *Service) attempt(ctx context.Context, n *model.Notification, token *model.PushToken, d *model.PushDelivery) bool {
	msg := &Message{
		DeliveryID:     d.ID,
		NotificationID: n.ID,
		Token:          token.Token,
		Platform:       token.Platform,
		Title:          n.Title,
		Body:           n.Body,
		ImageURL:       n.ImageURL,
		DeepLink:       n.DeepLink,
	}

	start := time.Now()
	status, err := s.sender.Send(ctx, msg)
	s.metrics.ObservePushDuration(time.Since(start))

	d.AttemptCount++
	d.NextRetryAt = s.now().UTC()
	if status != 0 {
		d.LastHTTPStatus = &status
	}

	switch {
	case err == nil:
		d.Status = model.DeliveryStatusSent
		d.LastError = ""
		s.metrics.IncPushDelivery(metrics.StatusSuccess)
		return true

	case errors.Is(err, ErrTokenUnregistered):
		d.Status = model.DeliveryStatusDropped
		d.LastError = err.Error()
		if derr := s.store.DisablePushToken(ctx, token.ID); derr != nil {
			s.logger.Warn("failed to disable token", "token_id", token.ID, "error", derr)
		}
		s.metrics.IncPushDelivery(metrics.StatusDropped)
		return false

	default:
		d.LastError = err.Error()
		if scheduleRetry(d, s.now().UTC()) {
			s.metrics.IncPushDelivery(metrics.StatusFailed)
		} else {
			s.metrics.IncPushDelivery(metrics.StatusExhausted)
		}
		s.logger.Warn("push delivery failed",
			"delivery_id", d.ID,
			"attempt", d.AttemptCount,
			"status", d.Status,
			"error", err,
		)
		return false
	}
}
