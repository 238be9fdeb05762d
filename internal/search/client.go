package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthieujules/psychohistory/internal/clock"
	"github.com/matthieujules/psychohistory/internal/corelib/errs"
	"github.com/matthieujules/psychohistory/internal/metrics"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// BackoffSchedule is the exponential-backoff ladder between retries:
// 1s, 2s, 4s, 8s, 16s.
var BackoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// MaxRetries is the maximum number of retries on a transient failure
// (HTTP 429 or network error) before giving up.
const MaxRetries = 5

// Client wraps a Provider with a sliding-window rate limiter and an
// exponential-backoff retry ladder. It is the concrete search
// collaborator the core constructs and shares across all concurrent
// node pipelines.
type Client struct {
	provider Provider
	limiter  *Limiter
	clock    clock.Clock
	metrics  *metrics.Registry
	log      *slog.Logger
}

// NewClient builds a Client around provider, rate-limited per limiterCfg.
func NewClient(provider Provider, limiterCfg LimiterConfig, c clock.Clock, m *metrics.Registry, log *slog.Logger) (*Client, error) {
	limiter, err := NewLimiter(limiterCfg, c)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{provider: provider, limiter: limiter, clock: c, metrics: m, log: log}, nil
}

// Search acquires a rate-limit permit, then issues query against the
// wrapped provider, retrying transient failures per the backoff ladder.
// A non-retryable error (a non-429 4xx) returns immediately.
func (c *Client) Search(ctx context.Context, query string) ([]treemodel.Source, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, &errs.TransportError{Op: "search.acquire", Retryable: false, Err: err}
	}

	if c.metrics != nil {
		c.metrics.SearchCalls.Inc()
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		sources, err := c.provider.Search(ctx, query)
		if err == nil {
			return sources, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, &errs.TransportError{Op: "search", Retryable: false, Err: err}
		}
		if attempt == MaxRetries {
			break
		}

		if c.metrics != nil {
			c.metrics.SearchRetries.Inc()
		}

		delay := BackoffSchedule[min(attempt, len(BackoffSchedule)-1)]
		c.log.Warn("search call failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, &errs.TransportError{Op: "search", Retryable: false, Err: ctx.Err()}
		case <-c.clock.After(delay):
		}
	}

	return nil, &errs.TransportError{Op: "search", Retryable: true, Err: fmt.Errorf("exhausted %d retries: %w", MaxRetries, lastErr)}
}

func isRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}
	return false
}
