package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// New builds a limiter for one upstream.
// A positive requests-per-minute budget wins and allows bursts of burst
// calls; otherwise a positive minInterval spaces calls at least that far
// apart. With neither set it returns nil, meaning unlimited.
func New(maxRequestsPerMinute, burst int, minInterval time.Duration) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if maxRequestsPerMinute > 0 {
		return rate.NewLimiter(rate.Limit(float64(maxRequestsPerMinute)/60.0), burst)
	}
	if minInterval > 0 {
		return rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return nil
}

// Wait blocks until l admits one call or ctx is done. A nil limiter never waits.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
