package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncPrayerDispatch is a no-op.
func (n *NoopRecorder) IncPrayerDispatch(status string) {}

// ObserveDispatchRun is a no-op.
func (n *NoopRecorder) ObserveDispatchRun(duration time.Duration) {}

// IncPushDelivery is a no-op.
func (n *NoopRecorder) IncPushDelivery(status string) {}

// ObservePushDuration is a no-op.
func (n *NoopRecorder) ObservePushDuration(duration time.Duration) {}

// IncUnlockAttempt is a no-op.
func (n *NoopRecorder) IncUnlockAttempt(status string) {}

// IncContentPublished is a no-op.
func (n *NoopRecorder) IncContentPublished(status string) {}
