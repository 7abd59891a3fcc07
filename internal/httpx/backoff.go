package httpx

import "time"

// Backoff computes exponential retry delays: Base * 2^attempt, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{Base: 500 * time.Millisecond, Max: 30 * time.Second}
}

// Delay returns the wait before retry number attempt (0-based).
// A negative attempt yields Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		return b.Base
	}
	// 2^30 * any positive base is already past any sane cap.
	if attempt > 30 {
		return b.Max
	}
	d := b.Base * time.Duration(1<<attempt)
	if b.Max > 0 && (d > b.Max || d <= 0) {
		return b.Max
	}
	return d
}
