package push

import (
	"math/rand"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// DefaultMaxAttempts bounds attempts per token, the first send included.
const DefaultMaxAttempts = 5

// Waits before the 1st..5th retry. Each wait is spread by ±retryJitter.
var retrySchedule = [...]time.Duration{
	time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

const retryJitter = 0.2

// RetryDelay returns the wait before retrying a delivery that has failed
// failures times. Counts beyond the schedule reuse its last step.
func RetryDelay(failures int) time.Duration {
	step := min(max(failures, 1), len(retrySchedule)) - 1
	spread := 1 + retryJitter*(2*rand.Float64()-1)
	return time.Duration(float64(retrySchedule[step]) * spread)
}

// scheduleRetry settles a delivery after a failed attempt: pending with
// a new next_retry_at, or exhausted once its attempts are spent. It
// reports whether the delivery stays queued.
func scheduleRetry(d *model.PushDelivery, now time.Time) bool {
	if d.AttemptCount >= d.MaxAttempts {
		d.Status = model.DeliveryStatusExhausted
		return false
	}
	d.Status = model.DeliveryStatusPending
	d.NextRetryAt = now.Add(RetryDelay(d.AttemptCount))
	return true
}
