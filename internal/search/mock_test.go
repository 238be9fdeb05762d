package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_ReturnsThreeDeterministicSources(t *testing.T) {
	p := MockProvider{}
	sources, err := p.Search(context.Background(), "AI regulation")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	again, err := p.Search(context.Background(), "AI regulation")
	require.NoError(t, err)
	assert.Equal(t, sources, again)
}

func TestMockProvider_DistinctQueriesYieldDistinctURLs(t *testing.T) {
	p := MockProvider{}
	a, _ := p.Search(context.Background(), "one")
	b, _ := p.Search(context.Background(), "two")
	assert.NotEqual(t, a[0].URL, b[0].URL)
}
