package notify

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often the worker runs a dispatch pass.
const DefaultInterval = time.Minute

// Worker runs the dispatcher on a fixed interval.
type Worker struct {
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewWorker creates a Worker. A non-positive interval uses DefaultInterval.
func NewWorker(dispatcher *Dispatcher, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger.With("component", "notify.worker"),
		now:        time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("prayer dispatch worker started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("prayer dispatch worker stopping")
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	result, err := w.dispatcher.Run(ctx, w.now())
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("dispatch run failed", "error", err)
		}
		return
	}

	attrs := []any{"processed", result.Processed, "sent", result.Sent}
	if len(result.Errors) > 0 {
		w.logger.Warn("dispatch run finished with errors", append(attrs, "errors", result.Errors)...)
		return
	}
	if result.Sent > 0 {
		w.logger.Info("dispatch run finished", attrs...)
		return
	}
	w.logger.Debug("dispatch run finished", attrs...)
}
