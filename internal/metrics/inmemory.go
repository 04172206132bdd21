package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	PrayerDispatchSent    uint64
	PrayerDispatchFailed  uint64
	PrayerDispatchSkipped uint64
	DispatchRunCount      uint64
	DispatchRunTotalNs    int64

	PushSent            uint64
	PushFailed          uint64
	PushExhausted       uint64
	PushDropped         uint64
	PushDurationCount   uint64
	PushDurationTotalNs int64

	UnlockSuccess uint64
	UnlockFailed  uint64
	UnlockLocked  uint64

	ContentPublished       uint64
	ContentPublishedFailed uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics
// endpoint and tests.
type InMemoryRecorder struct {
	prayerDispatchSent    uint64
	prayerDispatchFailed  uint64
	prayerDispatchSkipped uint64
	dispatchRunCount      uint64
	dispatchRunTotalNs    int64

	pushSent            uint64
	pushFailed          uint64
	pushExhausted       uint64
	pushDropped         uint64
	pushDurationCount   uint64
	pushDurationTotalNs int64

	unlockSuccess uint64
	unlockFailed  uint64
	unlockLocked  uint64

	contentPublished       uint64
	contentPublishedFailed uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		PrayerDispatchSent:    atomic.LoadUint64(&m.prayerDispatchSent),
		PrayerDispatchFailed:  atomic.LoadUint64(&m.prayerDispatchFailed),
		PrayerDispatchSkipped: atomic.LoadUint64(&m.prayerDispatchSkipped),
		DispatchRunCount:      atomic.LoadUint64(&m.dispatchRunCount),
		DispatchRunTotalNs:    atomic.LoadInt64(&m.dispatchRunTotalNs),

		PushSent:            atomic.LoadUint64(&m.pushSent),
		PushFailed:          atomic.LoadUint64(&m.pushFailed),
		PushExhausted:       atomic.LoadUint64(&m.pushExhausted),
		PushDropped:         atomic.LoadUint64(&m.pushDropped),
		PushDurationCount:   atomic.LoadUint64(&m.pushDurationCount),
		PushDurationTotalNs: atomic.LoadInt64(&m.pushDurationTotalNs),

		UnlockSuccess: atomic.LoadUint64(&m.unlockSuccess),
		UnlockFailed:  atomic.LoadUint64(&m.unlockFailed),
		UnlockLocked:  atomic.LoadUint64(&m.unlockLocked),

		ContentPublished:       atomic.LoadUint64(&m.contentPublished),
		ContentPublishedFailed: atomic.LoadUint64(&m.contentPublishedFailed),
	}
}

// IncPrayerDispatch counts one prayer reminder outcome.
func (m *InMemoryRecorder) IncPrayerDispatch(status string) {
	switch status {
	case StatusSuccess:
		atomic.AddUint64(&m.prayerDispatchSent, 1)
	case StatusSkipped:
		atomic.AddUint64(&m.prayerDispatchSkipped, 1)
	default:
		atomic.AddUint64(&m.prayerDispatchFailed, 1)
	}
}

// ObserveDispatchRun records the duration of one dispatch run.
func (m *InMemoryRecorder) ObserveDispatchRun(duration time.Duration) {
	atomic.AddUint64(&m.dispatchRunCount, 1)
	atomic.AddInt64(&m.dispatchRunTotalNs, duration.Nanoseconds())
}

// IncPushDelivery counts one push attempt outcome.
func (m *InMemoryRecorder) IncPushDelivery(status string) {
	switch status {
	case StatusSuccess:
		atomic.AddUint64(&m.pushSent, 1)
	case StatusExhausted:
		atomic.AddUint64(&m.pushExhausted, 1)
	case StatusDropped:
		atomic.AddUint64(&m.pushDropped, 1)
	default:
		atomic.AddUint64(&m.pushFailed, 1)
	}
}

// ObservePushDuration records gateway round-trip time.
func (m *InMemoryRecorder) ObservePushDuration(duration time.Duration) {
	atomic.AddUint64(&m.pushDurationCount, 1)
	atomic.AddInt64(&m.pushDurationTotalNs, duration.Nanoseconds())
}

// IncUnlockAttempt counts one admin unlock attempt.
func (m *InMemoryRecorder) IncUnlockAttempt(status string) {
	switch status {
	case StatusSuccess:
		atomic.AddUint64(&m.unlockSuccess, 1)
	case StatusLocked:
		atomic.AddUint64(&m.unlockLocked, 1)
	default:
		atomic.AddUint64(&m.unlockFailed, 1)
	}
}

// IncContentPublished counts one scheduled publish outcome.
func (m *InMemoryRecorder) IncContentPublished(status string) {
	if status == StatusSuccess {
		atomic.AddUint64(&m.contentPublished, 1)
		return
	}
	atomic.AddUint64(&m.contentPublishedFailed, 1)
}
