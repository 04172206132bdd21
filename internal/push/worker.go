package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
)

const (
	// DefaultBatchSize is the number of deliveries to process per poll.
	DefaultBatchSize = 50
	// DefaultPollInterval is the time between polling for pending deliveries.
	DefaultPollInterval = 5 * time.Second
)

// Worker retries pending push deliveries.
type Worker struct {
	service      *Service
	logger       *slog.Logger
	batchSize    int
	pollInterval time.Duration
	started      bool
}

// NewWorker creates a retry worker over the service's store and sender.
func NewWorker(service *Service, logger *slog.Logger) *Worker {
	return &Worker{
		service:      service,
		logger:       logger.With("component", "push.worker"),
		batchSize:    DefaultBatchSize,
		pollInterval: DefaultPollInterval,
	}
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true

	w.logger.Info("push worker started", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("push worker stopping")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
			}
		}
	}
}

// ProcessOnce retries one batch of due deliveries and returns how many
// were attempted.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	store := w.service.store
	deliveries, err := store.GetPendingDeliveries(ctx, w.service.now().UTC(), w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending deliveries: %w", err)
	}

	for _, d := range deliveries {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if err := w.retry(ctx, d); err != nil {
			w.logger.Warn("delivery retry failed",
				"delivery_id", d.ID,
				"error", err,
			)
		}
	}
	return len(deliveries), nil
}

func (w *Worker) retry(ctx context.Context, d *model.PushDelivery) error {
	store := w.service.store

	token, err := store.GetPushToken(ctx, d.TokenID)
	if err != nil && !errors.Is(err, repository.ErrPushTokenNotFound) {
		return err
	}
	if err != nil || !token.Enabled {
		d.Status = model.DeliveryStatusDropped
		d.LastError = "token disabled"
		return store.UpdateDelivery(ctx, d)
	}

	n, err := store.GetNotification(ctx, d.NotificationID)
	if err != nil && !errors.Is(err, repository.ErrNotificationNotFound) {
		return err
	}
	if err != nil {
		d.Status = model.DeliveryStatusDropped
		d.LastError = "notification missing"
		return store.UpdateDelivery(ctx, d)
	}

	if w.service.attempt(ctx, n, token, d) && n.Status == model.NotificationFailed {
		sentAt := w.service.now().UTC()
		if err := store.MarkNotification(ctx, n.ID, model.NotificationSent, &sentAt); err != nil {
			w.logger.Warn("failed to mark notification sent", "notification_id", n.ID, "error", err)
		}
	}
	return store.UpdateDelivery(ctx, d)
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetPollInterval overrides the default poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}
