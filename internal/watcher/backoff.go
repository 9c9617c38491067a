package watcher

import (
	"context"
	"time"
)

const (
	defaultBackoff    = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// backoff doubles the delay on every attempt up to max.
type backoff struct {
	base time.Duration
	max  time.Duration
}

func newBackoff(base, max time.Duration) backoff {
	if base <= 0 {
		base = defaultBackoff
	}
	if max < base {
		max = defaultMaxBackoff
		if max < base {
			max = base
		}
	}
	return backoff{base: base, max: max}
}

func (b backoff) delay(attempt int) time.Duration {
	delay := b.base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.max {
			return b.max
		}
	}
	return delay
}

// wait sleeps for the attempt's delay. It returns false when ctx ends first.
func (b backoff) wait(ctx context.Context, attempt int) bool {
	timer := time.NewTimer(b.delay(attempt))
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.C:
		return true
	}
}
