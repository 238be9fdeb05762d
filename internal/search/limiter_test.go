package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieujules/psychohistory/internal/testsupport"
)

func TestNewLimiter_ValidatesConfig(t *testing.T) {
	c := testsupport.NewFixedClock(time.Unix(0, 0))

	t.Run("rejects non-positive limit", func(t *testing.T) {
		_, err := NewLimiter(LimiterConfig{Limit: 0, Window: time.Second}, c)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive window", func(t *testing.T) {
		_, err := NewLimiter(LimiterConfig{Limit: 5, Window: 0}, c)
		assert.Error(t, err)
	})

	t.Run("defaults slack", func(t *testing.T) {
		l, err := NewLimiter(LimiterConfig{Limit: 5, Window: time.Second}, c)
		require.NoError(t, err)
		assert.Equal(t, DefaultSlack, l.cfg.Slack)
	})
}

func TestLimiter_AllowsUpToLimitWithinWindow(t *testing.T) {
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	l, err := NewLimiter(LimiterConfig{Limit: 5, Window: time.Second}, c)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
}

func TestLimiter_RollingWindowNeverExceedsLimit(t *testing.T) {
	// 10 child nodes each issue one search in parallel against
	// limiter{limit:5, window:1000ms}; the 6th through 10th acquisitions
	// must be delayed so that timestamps[5] - timestamps[0] >= 1000ms.
	c := testsupport.NewCountingClock(time.Unix(0, 0))
	l, err := NewLimiter(LimiterConfig{Limit: 5, Window: time.Second}, c)
	require.NoError(t, err)

	var mu sync.Mutex
	var timestamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			timestamps = append(timestamps, c.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, timestamps, 10)
	sortTimes(timestamps)
	assert.GreaterOrEqual(t, timestamps[5].Sub(timestamps[0]), time.Second)
}

func sortTimes(ts []time.Time) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].Before(ts[j-1]); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}

func TestLimiter_AcquireRespectsContextCancellation(t *testing.T) {
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	l, err := NewLimiter(LimiterConfig{Limit: 1, Window: time.Hour}, c)
	require.NoError(t, err)

	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
