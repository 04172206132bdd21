package handler

import (
	"fmt"
	"net/http"

	"github.com/noorapp/noor/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "noor_prayer_notifications_total{status=\"success\"} %d\n", snap.PrayerDispatchSent)
	writeMetric(w, "noor_prayer_notifications_total{status=\"failed\"} %d\n", snap.PrayerDispatchFailed)
	writeMetric(w, "noor_prayer_notifications_total{status=\"skipped\"} %d\n", snap.PrayerDispatchSkipped)
	writeMetric(w, "noor_dispatch_run_duration_seconds_count %d\n", snap.DispatchRunCount)
	writeMetric(w, "noor_dispatch_run_duration_seconds_sum %.6f\n", float64(snap.DispatchRunTotalNs)/1e9)

	writeMetric(w, "noor_push_deliveries_total{status=\"success\"} %d\n", snap.PushSent)
	writeMetric(w, "noor_push_deliveries_total{status=\"failed\"} %d\n", snap.PushFailed)
	writeMetric(w, "noor_push_deliveries_total{status=\"exhausted\"} %d\n", snap.PushExhausted)
	writeMetric(w, "noor_push_deliveries_total{status=\"dropped\"} %d\n", snap.PushDropped)
	writeMetric(w, "noor_push_duration_seconds_count %d\n", snap.PushDurationCount)
	writeMetric(w, "noor_push_duration_seconds_sum %.6f\n", float64(snap.PushDurationTotalNs)/1e9)

	writeMetric(w, "noor_admin_unlock_attempts_total{status=\"success\"} %d\n", snap.UnlockSuccess)
	writeMetric(w, "noor_admin_unlock_attempts_total{status=\"failed\"} %d\n", snap.UnlockFailed)
	writeMetric(w, "noor_admin_unlock_attempts_total{status=\"locked\"} %d\n", snap.UnlockLocked)

	writeMetric(w, "noor_content_published_total{status=\"success\"} %d\n", snap.ContentPublished)
	writeMetric(w, "noor_content_published_total{status=\"failed\"} %d\n", snap.ContentPublishedFailed)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
