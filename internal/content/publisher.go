// Package content publishes scheduled CMS items and sends scheduled push
// notifications once their time has come.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/push"
	"github.com/noorapp/noor/internal/repository"
)

// DefaultNotificationBatch bounds how many scheduled notifications one
// pass claims.
const DefaultNotificationBatch = 50

// Store is the persistence used by the publisher.
type Store interface {
	ListDueContent(ctx context.Context, now time.Time) ([]*model.Content, error)
	PublishContent(ctx context.Context, id string, now time.Time) error
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
	ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error)
	MarkNotification(ctx context.Context, id string, status model.NotificationStatus, sentAt *time.Time) error
}

// Notifier sends a stored notification. push.Service satisfies it.
type Notifier interface {
	Send(ctx context.Context, notificationID string) (*push.SendTotals, error)
}

// ItemResult reports the outcome for one content item.
type ItemResult struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PublishResult is returned by PublishDue.
type PublishResult struct {
	Message string       `json:"message"`
	Count   int          `json:"count"`
	Results []ItemResult `json:"results"`
}

// NotificationResult is returned by SendDueNotifications.
type NotificationResult struct {
	Claimed int      `json:"claimed"`
	Sent    int      `json:"sent"`
	Errors  []string `json:"errors"`
}

// Publisher moves due scheduled items to their published state.
type Publisher struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  metrics.Recorder
	batch    int
}

// NewPublisher creates a Publisher.
func NewPublisher(store Store, notifier Notifier, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "content"),
		metrics:  recorder,
		batch:    DefaultNotificationBatch,
	}
}

// PublishDue publishes every scheduled item whose time has passed.
// Failures on one item are recorded and the rest are still processed.
func (p *Publisher) PublishDue(ctx context.Context, now time.Time) (*PublishResult, error) {
	items, err := p.store.ListDueContent(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("fetch scheduled content: %w", err)
	}
	if len(items) == 0 {
		return &PublishResult{Message: "No scheduled content to publish", Results: []ItemResult{}}, nil
	}

	results := make([]ItemResult, 0, len(items))
	published := 0
	for _, item := range items {
		if err := p.store.PublishContent(ctx, item.ID, now); err != nil {
			// Another worker got there first.
			if errors.Is(err, repository.ErrContentNotDue) {
				continue
			}
			p.logger.Error("publish content failed", "content_id", item.ID, "error", err)
			p.metrics.IncContentPublished(metrics.StatusFailed)
			results = append(results, ItemResult{ID: item.ID, Success: false, Error: err.Error()})
			continue
		}

		id := item.ID
		if err := p.store.InsertAudit(ctx, &model.AuditEntry{
			Action:       model.AuditContentAutoPublish,
			ActorID:      model.SystemActorID,
			ResourceType: model.ResourceContent,
			ResourceID:   &id,
			Metadata: map[string]any{
				"title":        item.Title,
				"scheduled_at": item.ScheduledAt,
				"published_at": now,
			},
			CreatedAt: now,
		}); err != nil {
			p.logger.Warn("audit content publish failed", "content_id", item.ID, "error", err)
		}

		p.metrics.IncContentPublished(metrics.StatusSuccess)
		results = append(results, ItemResult{ID: item.ID, Title: item.Title, Success: true})
		published++
	}

	return &PublishResult{
		Message: fmt.Sprintf("Published %d of %d scheduled content items", published, len(results)),
		Count:   published,
		Results: results,
	}, nil
}

// SendDueNotifications claims scheduled notifications that are due and
// sends each through the notifier. A notification whose send errors is
// settled as failed, or sent when some device already received it, so
// it never stays claimed.
func (p *Publisher) SendDueNotifications(ctx context.Context, now time.Time) (*NotificationResult, error) {
	due, err := p.store.ClaimDueNotifications(ctx, now, p.batch)
	if err != nil {
		return nil, fmt.Errorf("claim scheduled notifications: %w", err)
	}

	result := &NotificationResult{Claimed: len(due), Errors: []string{}}
	for _, n := range due {
		totals, err := p.notifier.Send(ctx, n.ID)
		if err != nil {
			p.logger.Error("scheduled notification failed", "notification_id", n.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("notification %s: %v", n.ID, err))
			p.settle(ctx, n.ID, totals, now)
			if totals != nil && totals.Sent > 0 {
				result.Sent++
			}
			continue
		}
		if totals.Sent > 0 {
			result.Sent++
		}
	}
	return result, nil
}

func (p *Publisher) settle(ctx context.Context, id string, totals *push.SendTotals, now time.Time) {
	status := model.NotificationFailed
	var sentAt *time.Time
	if totals != nil && totals.Sent > 0 {
		status = model.NotificationSent
		at := now.UTC()
		sentAt = &at
	}
	if err := p.store.MarkNotification(ctx, id, status, sentAt); err != nil {
		p.logger.Error("failed to settle scheduled notification",
			"notification_id", id,
			"status", status,
			"error", err,
		)
	}
}
