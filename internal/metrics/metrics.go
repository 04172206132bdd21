// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by the counters.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusExhausted = "exhausted"
	StatusDropped   = "dropped"
	StatusLocked    = "locked"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Prayer notification dispatch
	IncPrayerDispatch(status string) // status: "success", "failed", "skipped"
	ObserveDispatchRun(duration time.Duration)

	// Push delivery
	IncPushDelivery(status string) // status: "success", "failed", "exhausted", "dropped"
	ObservePushDuration(duration time.Duration)

	// Admin unlock
	IncUnlockAttempt(status string) // status: "success", "failed", "locked"

	// Scheduled content
	IncContentPublished(status string) // status: "success", "failed"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
