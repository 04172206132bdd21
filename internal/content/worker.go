package content

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the worker looks for due items.
const DefaultInterval = time.Minute

// Worker runs both publisher passes on a fixed interval.
type Worker struct {
	publisher *Publisher
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewWorker creates a Worker. A non-positive interval uses DefaultInterval.
func NewWorker(publisher *Publisher, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		publisher: publisher,
		interval:  interval,
		logger:    logger.With("component", "content.worker"),
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("scheduled publish worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("scheduled publish worker stopping")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	now := w.now().UTC()

	published, err := w.publisher.PublishDue(ctx, now)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			w.logger.Error("publish pass failed", "error", err)
		}
	case published.Count > 0 || len(published.Results) > 0:
		w.logger.Info(published.Message)
	}

	sent, err := w.publisher.SendDueNotifications(ctx, now)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			w.logger.Error("scheduled notification pass failed", "error", err)
		}
	case len(sent.Errors) > 0:
		w.logger.Warn("scheduled notifications sent with errors", "claimed", sent.Claimed, "sent", sent.Sent, "errors", sent.Errors)
	case sent.Claimed > 0:
		w.logger.Info("scheduled notifications sent", "claimed", sent.Claimed, "sent", sent.Sent)
	}
}
