package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieujules/psychohistory/internal/idgen"
	"github.com/matthieujules/psychohistory/internal/testsupport"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

type scriptedResearcher struct {
	result treemodel.ResearchResult
}

func (s scriptedResearcher) Research(_ context.Context, _ string, _ []string, _ treemodel.SeedInput) treemodel.ResearchResult {
	return s.result
}

func threeSources() []treemodel.Source {
	return []treemodel.Source{
		{URL: "https://example.com/1", Title: "one", Snippet: "s1"},
		{URL: "https://example.org/2", Title: "two", Snippet: "s2"},
		{URL: "https://example.net/3", Title: "three", Snippet: "s3"},
	}
}

func TestNodeProcessor_HappyPath(t *testing.T) {
	mockLLM := testsupport.NewMockLLM().WithJSON([]any{
		map[string]any{"event": "event A happens next here", "probability": 0.6},
		map[string]any{"event": "event B happens next here", "probability": 0.4},
	})
	researcher := scriptedResearcher{result: treemodel.ResearchResult{Sources: threeSources(), Confidence: treemodel.ConfidenceMedium}}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")

	p := New(mockLLM, researcher, ids, c, nil)
	root := treemodel.EventNode{ID: "root", Event: "X", Depth: 0}
	children, err := p.Process(context.Background(), root, treemodel.SeedInput{Event: "X"}, []string{"X"}, 1)
	require.NoError(t, err)
	require.Len(t, children, 2)

	research := researcher.result
	var sum float64
	for _, c := range children {
		sum += c.Probability
		assert.Equal(t, 1, c.Depth)
		assert.Equal(t, "root", c.ParentID)
		assert.Equal(t, treemodel.StatusPending, c.ProcessingStatus)
		assert.Equal(t, FixedJustification, c.Justification)
		assert.Len(t, c.Sources, 3)
		for _, s := range c.Sources {
			assert.True(t, treemodel.ContainsSource(research.Sources, s), "child source %q not in parent's research sources", s.URL)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestNodeProcessor_RenormalizesWhenSumDrifts(t *testing.T) {
	mockLLM := testsupport.NewMockLLM().WithJSON([]any{
		map[string]any{"event": "outcome P happens here now", "probability": 0.7},
		map[string]any{"event": "outcome Q happens here now", "probability": 0.5},
		map[string]any{"event": "outcome R happens here now", "probability": 0.3},
	})
	researcher := scriptedResearcher{result: treemodel.ResearchResult{Sources: threeSources()}}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")

	p := New(mockLLM, researcher, ids, c, nil)
	root := treemodel.EventNode{ID: "root", Event: "X", Depth: 0}
	children, err := p.Process(context.Background(), root, treemodel.SeedInput{Event: "X"}, []string{"X"}, 1)
	require.NoError(t, err)
	require.Len(t, children, 3)

	assert.InDelta(t, 0.4667, children[0].Probability, 1e-4)
	assert.InDelta(t, 0.3333, children[1].Probability, 1e-4)
	assert.InDelta(t, 0.2000, children[2].Probability, 1e-4)
}

func TestNodeProcessor_FallbackOnZeroSources(t *testing.T) {
	mockLLM := testsupport.NewMockLLM()
	researcher := scriptedResearcher{result: treemodel.ResearchResult{Sources: nil}}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")

	p := New(mockLLM, researcher, ids, c, nil)
	root := treemodel.EventNode{ID: "root", Event: "X", Depth: 0}
	children, err := p.Process(context.Background(), root, treemodel.SeedInput{Event: "X"}, []string{"X"}, 1)
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.Equal(t, 0.5, children[0].Probability)
	assert.Equal(t, 0.5, children[1].Probability)
	assert.Equal(t, 0, children[0].Sentiment)
	assert.Equal(t, -10, children[1].Sentiment)
	assert.Empty(t, children[0].Sources)
	assert.Empty(t, children[1].Sources)
	assert.Empty(t, children[0].Justification)
}

func TestNodeProcessor_FallsBackAfterSchemaRetriesExhausted(t *testing.T) {
	mockLLM := testsupport.NewMockLLM().
		WithJSONError(assertErr{}).
		WithJSONError(assertErr{}).
		WithJSONError(assertErr{}).
		WithJSONError(assertErr{})
	researcher := scriptedResearcher{result: treemodel.ResearchResult{Sources: threeSources()}}
	c := testsupport.NewCountingClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")

	p := New(mockLLM, researcher, ids, c, nil)
	root := treemodel.EventNode{ID: "root", Event: "X", Depth: 0}
	children, err := p.Process(context.Background(), root, treemodel.SeedInput{Event: "X"}, []string{"X"}, 1)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, 0.5, children[0].Probability)
}

type assertErr struct{}

func (assertErr) Error() string { return "schema failure" }
