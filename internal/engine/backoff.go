package engine

import "time"

// Tiered retry backoff for the push lane. The first tier probes quickly to
// catch transient provider blips, later tiers space attempts out to hourly.
// No jitter: queue volume is small enough that synchronized retries are not
// a concern yet.
//
// SMS records never consult this policy — a failed SMS is terminal because
// every send is billed and a retry would double-bill.
const (
	fastRetryDelay   = 20 * time.Second
	mediumRetryDelay = 3 * time.Minute
	slowRetryDelay   = 60 * time.Minute
	finalRetryDelay  = 120 * time.Minute
)

// RetryDelay maps a retry count (the attempt number just completed) to the
// delay before the next attempt.
func RetryDelay(retryCount int) time.Duration {
	switch {
	case retryCount <= 3:
		return fastRetryDelay
	case retryCount <= 6:
		return mediumRetryDelay
	case retryCount <= 12:
		return slowRetryDelay
	default:
		return finalRetryDelay
	}
}

// NextAttemptAt returns the earliest time the next dispatch attempt may run.
func NextAttemptAt(now time.Time, retryCount int) time.Time {
	return now.Add(RetryDelay(retryCount))
}
