package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// newRequestLimiter builds the inter-request pacing limiter shared by the
// adapters. A zero delay disables pacing.
func newRequestLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// waitBetweenRequests blocks until the limiter allows the next upstream call.
// Returns early only when ctx is cancelled.
func waitBetweenRequests(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
