package worker

import (
	"context"
	"time"
)

// RateLimiter paces a worker loop to a maximum job throughput.
// It is not a token bucket: after a job took elapsed, the next claim is
// delayed by whatever is left of the per-job time budget.
type RateLimiter struct {
	minJobTime time.Duration
}

// NewRateLimiter returns a limiter for maxJobsPerSecond. A non-positive
// value disables pacing.
func NewRateLimiter(maxJobsPerSecond float64) *RateLimiter {
	if maxJobsPerSecond <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{
		minJobTime: time.Duration(float64(time.Second) / maxJobsPerSecond),
	}
}

// MinJobTime is the per-job time budget, 1 / max jobs per second
func (r *RateLimiter) MinJobTime() time.Duration {
	return r.minJobTime
}

// Delay returns max(0, minJobTime - elapsed)
func (r *RateLimiter) Delay(elapsed time.Duration) time.Duration {
	return max(r.minJobTime-elapsed, 0)
}

// Wait sleeps for Delay(elapsed) or until ctx is done
func (r *RateLimiter) Wait(ctx context.Context, elapsed time.Duration) error {
	return sleepContext(ctx, r.Delay(elapsed))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
