// Package notify dispatches prayer-time reminders to devices.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/prayer"
	"github.com/noorapp/noor/internal/push"
	"github.com/noorapp/noor/internal/repository"
)

// Deep link opened when a reminder is tapped.
const reminderDeepLink = "/prayer-times"

// Store is the persistence used by the dispatcher.
type Store interface {
	ListEnabledPreferences(ctx context.Context) ([]*model.NotificationPreference, error)
	ClaimPrayerNotification(ctx context.Context, entry *model.PrayerNotificationLog) error
	ReleasePrayerNotification(ctx context.Context, id string) error
	AttachPrayerNotification(ctx context.Context, id, notificationID string) error
	ListDeviceTokens(ctx context.Context, deviceID string) ([]*model.PushToken, error)
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Pusher delivers a notification to one device.
type Pusher interface {
	SendToDevice(ctx context.Context, notificationID, deviceID string) (*push.SendTotals, error)
}

// RunResult summarizes one dispatch pass.
type RunResult struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Sent      int      `json:"sent"`
	Errors    []string `json:"errors,omitempty"`
}

// Dispatcher sends a reminder when a prayer enters a device's
// notification window, at most once per prayer and local date.
type Dispatcher struct {
	store    Store
	provider prayer.Provider
	pusher   Pusher
	logger   *slog.Logger
	metrics  metrics.Recorder
	window   time.Duration
}

// NewDispatcher creates a Dispatcher. A non-positive window uses
// prayer.DefaultNotifyWindow.
func NewDispatcher(store Store, provider prayer.Provider, pusher Pusher, window time.Duration, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if window <= 0 {
		window = prayer.DefaultNotifyWindow
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Dispatcher{
		store:    store,
		provider: provider,
		pusher:   pusher,
		logger:   logger.With("component", "notify.dispatcher"),
		metrics:  recorder,
		window:   window,
	}
}

// Run performs one dispatch pass at now. Failures for a single
// preference are collected in the result and do not stop the pass; only
// failing to load preferences returns an error.
func (d *Dispatcher) Run(ctx context.Context, now time.Time) (*RunResult, error) {
	start := time.Now()
	defer func() { d.metrics.ObserveDispatchRun(time.Since(start)) }()

	prefs, err := d.store.ListEnabledPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	if len(prefs) == 0 {
		return &RunResult{Message: "No active preferences"}, nil
	}

	result := &RunResult{
		Message:   "Prayer notifications processed",
		Processed: len(prefs),
	}
	for _, pref := range prefs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		sent, errs := d.processPreference(ctx, pref, now)
		result.Sent += sent
		result.Errors = append(result.Errors, errs...)
	}
	return result, nil
}

func (d *Dispatcher) processPreference(ctx context.Context, pref *model.NotificationPreference, now time.Time) (sent int, errs []string) {
	defer func() {
		if r := recover(); r != nil {
			errs = append(errs, fmt.Sprintf("Error processing %s: %v", pref.ID, r))
		}
	}()

	method, ok := prayer.ParseMethod(pref.CalculationMethod)
	if !ok {
		method = prayer.DefaultMethod
	}
	loc := pref.Location()

	timings, err := d.provider.Timings(ctx, prayer.Query{
		Latitude:  pref.Latitude,
		Longitude: pref.Longitude,
		Date:      now.In(loc),
		Method:    method,
		Timezone:  loc.String(),
	})
	if err != nil {
		d.logger.Warn("timings lookup failed", "preference_id", pref.ID, "error", err)
		return 0, []string{fmt.Sprintf("Failed to get times for preference %s", pref.ID)}
	}

	for _, p := range pref.EnabledPrayers.Enabled() {
		prayerAt, ok := timings.At(p)
		if !ok {
			continue
		}
		if !prayer.IsTimeToNotify(prayerAt, pref.NotificationOffset, now, d.window) {
			continue
		}

		ok, failure := d.remind(ctx, pref, p, prayerAt)
		switch {
		case failure != "":
			d.metrics.IncPrayerDispatch(metrics.StatusFailed)
			errs = append(errs, failure)
		case ok:
			d.metrics.IncPrayerDispatch(metrics.StatusSuccess)
			sent++
		default:
			d.metrics.IncPrayerDispatch(metrics.StatusSkipped)
		}
	}
	return sent, errs
}

// remind claims the slot and sends one reminder. It reports whether a
// reminder went out and, on failure, the message recorded in the run.
func (d *Dispatcher) remind(ctx context.Context, pref *model.NotificationPreference, p model.PrayerName, prayerAt time.Time) (bool, string) {
	logger := d.logger.With("preference_id", pref.ID, "prayer", p)

	entry := &model.PrayerNotificationLog{
		PreferenceID: pref.ID,
		Prayer:       p,
		PrayerTime:   prayerAt.UTC(),
		PrayerDate:   prayerAt.Format("2006-01-02"),
	}
	if err := d.store.ClaimPrayerNotification(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrAlreadyDispatched) {
			return false, ""
		}
		return false, fmt.Sprintf("Error processing %s: %v", pref.ID, err)
	}

	release := func() {
		if err := d.store.ReleasePrayerNotification(ctx, entry.ID); err != nil {
			logger.Error("failed to release reminder claim", "error", err)
		}
	}

	tokens, err := d.store.ListDeviceTokens(ctx, pref.DeviceID)
	if err != nil {
		release()
		return false, fmt.Sprintf("Error processing %s: %v", pref.ID, err)
	}
	if len(tokens) == 0 {
		release()
		return false, ""
	}

	emoji, name := prayer.Display(p)
	deepLink := reminderDeepLink
	n := &model.Notification{
		Title:          fmt.Sprintf("%s %s Time", emoji, name),
		Body:           fmt.Sprintf("It's time for %s prayer. May Allah accept your worship.", name),
		DeepLink:       &deepLink,
		TargetPlatform: model.TargetAll,
		Status:         model.NotificationDraft,
		CreatedBy:      pref.Actor(),
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		release()
		return false, fmt.Sprintf("Failed to create notification: %v", err)
	}

	// The slot stays claimed once a delivery is accepted or queued for retry.
	totals, err := d.pusher.SendToDevice(ctx, n.ID, pref.DeviceID)
	if !totals.Reached() {
		release()
		if err != nil {
			return false, fmt.Sprintf("Failed to send notification: %v", err)
		}
		return false, fmt.Sprintf("Failed to send notification: no device accepted %s", n.ID)
	}

	if err := d.store.AttachPrayerNotification(ctx, entry.ID, n.ID); err != nil {
		logger.Warn("failed to link reminder to notification", "notification_id", n.ID, "error", err)
	}
	if err != nil {
		logger.Warn("reminder sent with errors", "notification_id", n.ID, "error", err)
	}
	if totals.Sent == 0 {
		logger.Info("prayer reminder queued for retry", "notification_id", n.ID, "queued", totals.Queued)
		return false, fmt.Sprintf("Failed to send notification: %s queued for retry", n.ID)
	}

	logger.Info("prayer reminder sent", "notification_id", n.ID, "sent", totals.Sent)
	return true, ""
}
