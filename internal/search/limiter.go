package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matthieujules/psychohistory/internal/clock"
)

// LimiterConfig configures a sliding-window Limiter.
type LimiterConfig struct {
	// Limit is the maximum number of permits allowed inside Window.
	Limit int
	// Window is the sliding window duration.
	Window time.Duration
	// Slack is added to the wait computed from the oldest timestamp
	// exiting the window, to absorb scheduling jitter.
	Slack time.Duration
}

// DefaultSlack is added on top of the computed wait so a waiter doesn't
// wake up a few microseconds early and spin.
const DefaultSlack = 10 * time.Millisecond

// Limiter is a sliding-window rate limiter with a serialized critical
// section: at most one queued waiter is released per pass, and a new
// pass only begins after recomputing the valid timestamp window. A
// single mutex owns the window state and releases waiters; it
// deliberately does not implement any retry logic itself — retries
// live one layer up in Client.
type Limiter struct {
	cfg   LimiterConfig
	clock clock.Clock

	mu         sync.Mutex
	timestamps []time.Time
}

// NewLimiter constructs a Limiter. limit and window must be positive.
func NewLimiter(cfg LimiterConfig, c clock.Clock) (*Limiter, error) {
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("search: limiter limit must be positive, got %d", cfg.Limit)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("search: limiter window must be positive, got %s", cfg.Window)
	}
	if cfg.Slack == 0 {
		cfg.Slack = DefaultSlack
	}
	return &Limiter{cfg: cfg, clock: c, timestamps: make([]time.Time, 0, cfg.Limit)}, nil
}

// Acquire blocks until a permit is available, consuming it by recording
// the release timestamp, then returns. It respects ctx cancellation
// while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}
}

// tryAcquire performs one pass: prune timestamps outside the window,
// and if capacity remains, consume a permit and return (0, true).
// Otherwise it returns the duration to wait before the oldest
// timestamp exits the window, plus slack.
func (l *Limiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	cutoff := now.Add(-l.cfg.Window)

	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept

	if len(l.timestamps) < l.cfg.Limit {
		l.timestamps = append(l.timestamps, now)
		return 0, true
	}

	oldest := l.timestamps[0]
	wait := oldest.Add(l.cfg.Window).Sub(now) + l.cfg.Slack
	if wait < 0 {
		wait = l.cfg.Slack
	}
	return wait, false
}
