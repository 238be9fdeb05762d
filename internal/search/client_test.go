package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieujules/psychohistory/internal/testsupport"
)

func TestClient_RetriesOn429ThenSucceeds(t *testing.T) {
	c := testsupport.NewCountingClock(time.Unix(0, 0))
	provider := testsupport.NewStampingSearchProvider(c).FailFirstN(3, &RetryableError{StatusCode: 429, Message: "rate limited"})

	client, err := NewClient(provider, LimiterConfig{Limit: 100, Window: time.Second}, c, nil, nil)
	require.NoError(t, err)

	start := c.Now()
	sources, err := client.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, sources, 3)

	elapsed := c.Now().Sub(start)
	assert.GreaterOrEqual(t, elapsed, 1*time.Second+2*time.Second+4*time.Second)
}

func TestClient_NonRetryableErrorFailsImmediately(t *testing.T) {
	c := testsupport.NewCountingClock(time.Unix(0, 0))
	provider := testsupport.NewStampingSearchProvider(c).FailFirstN(1, assertAnError{})

	client, err := NewClient(provider, LimiterConfig{Limit: 100, Window: time.Second}, c, nil, nil)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q")
	assert.Error(t, err)
	assert.Len(t, provider.Arrivals(), 1)
}

func TestClient_ExhaustsRetriesAndFails(t *testing.T) {
	c := testsupport.NewCountingClock(time.Unix(0, 0))
	provider := testsupport.NewStampingSearchProvider(c).FailFirstN(999, &RetryableError{StatusCode: 429, Message: "rate limited"})

	client, err := NewClient(provider, LimiterConfig{Limit: 100, Window: time.Second}, c, nil, nil)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q")
	assert.Error(t, err)
	assert.Len(t, provider.Arrivals(), MaxRetries+1)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "non-retryable provider error" }
