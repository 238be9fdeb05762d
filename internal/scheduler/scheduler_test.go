package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieujules/psychohistory/internal/idgen"
	"github.com/matthieujules/psychohistory/internal/metrics"
	"github.com/matthieujules/psychohistory/internal/testsupport"
	"github.com/matthieujules/psychohistory/internal/treemodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingSink struct {
	mu     sync.Mutex
	events []treemodel.TreeStreamEvent
}

func (s *recordingSink) Emit(e treemodel.TreeStreamEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) snapshot() []treemodel.TreeStreamEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]treemodel.TreeStreamEvent, len(s.events))
	copy(out, s.events)
	return out
}

// fanOutProcessor produces n children per node for exactly one level,
// then zero children (leaves) afterward, so trees terminate predictably.
type fanOutProcessor struct {
	n int
}

func (p fanOutProcessor) Process(_ context.Context, node treemodel.EventNode, _ treemodel.SeedInput, _ []string, _ int) ([]treemodel.EventNode, error) {
	if node.Depth > 0 {
		return nil, nil
	}
	children := make([]treemodel.EventNode, p.n)
	for i := range children {
		children[i] = treemodel.EventNode{
			ID:               idgen.UUIDSource{}.NewID(),
			Event:            "child",
			Probability:      1.0 / float64(p.n),
			ParentID:         node.ID,
			Depth:            node.Depth + 1,
			ProcessingStatus: treemodel.StatusPending,
		}
	}
	return children, nil
}

func TestTreeBuilder_HappyPathEventOrder(t *testing.T) {
	proc := fanOutProcessor{n: 2}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")
	tb := New(proc, ids, c, nil, nil, Config{MaxConcurrent: 20})

	sink := &recordingSink{}
	root, err := tb.Build(context.Background(), treemodel.SeedInput{Event: "X", MaxDepth: 1}, sink)
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.Len(t, root.Children, 2)

	events := sink.snapshot()
	require.GreaterOrEqual(t, len(events), 5)
	assert.Equal(t, treemodel.EventTreeStarted, events[0].Type)
	assert.Equal(t, treemodel.EventTreeCompleted, events[len(events)-1].Type)
}

func TestTreeBuilder_DepthCompletedPrecedesNextDepthProcessing(t *testing.T) {
	proc := fanOutProcessor{n: 3}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")
	tb := New(proc, ids, c, nil, nil, Config{MaxConcurrent: 20})

	sink := &recordingSink{}
	_, err := tb.Build(context.Background(), treemodel.SeedInput{Event: "X", MaxDepth: 2}, sink)
	require.NoError(t, err)

	events := sink.snapshot()
	var depth0CompletedIdx, firstDepth1ProcessingIdx int = -1, -1
	for i, e := range events {
		if e.Type == treemodel.EventDepthCompleted {
			data := e.Data.(treemodel.DepthCompletedData)
			if data.Depth == 0 {
				depth0CompletedIdx = i
			}
		}
		if e.Type == treemodel.EventNodeProcessing && firstDepth1ProcessingIdx == -1 {
			data := e.Data.(treemodel.NodeProcessingData)
			if data.Depth == 1 {
				firstDepth1ProcessingIdx = i
			}
		}
	}

	require.NotEqual(t, -1, depth0CompletedIdx)
	require.NotEqual(t, -1, firstDepth1ProcessingIdx)
	assert.Less(t, depth0CompletedIdx, firstDepth1ProcessingIdx)
}

// gaugeSamplingProcessor wraps fanOutProcessor and, for every non-root
// node it processes, samples metrics.Registry.ActivePipelines while the
// call is in flight, tracking the highest value observed across the
// whole build.
type gaugeSamplingProcessor struct {
	inner fanOutProcessor
	reg   *metrics.Registry

	mu   sync.Mutex
	peak float64
}

func (p *gaugeSamplingProcessor) Process(ctx context.Context, node treemodel.EventNode, seed treemodel.SeedInput, path []string, maxDepth int) ([]treemodel.EventNode, error) {
	if node.Depth > 0 {
		time.Sleep(2 * time.Millisecond)
		v := testutil.ToFloat64(p.reg.ActivePipelines)
		p.mu.Lock()
		if v > p.peak {
			p.peak = v
		}
		p.mu.Unlock()
	}
	return p.inner.Process(ctx, node, seed, path, maxDepth)
}

func TestTreeBuilder_ConcurrencyBarrier(t *testing.T) {
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	const maxConcurrent = 20
	proc := &gaugeSamplingProcessor{inner: fanOutProcessor{n: 25}, reg: reg}
	tb := New(proc, ids, c, reg, nil, Config{MaxConcurrent: maxConcurrent})

	sink := &recordingSink{}
	root, err := tb.Build(context.Background(), treemodel.SeedInput{Event: "X", MaxDepth: 2}, sink)
	require.NoError(t, err)
	assert.Len(t, root.Children, 25)

	proc.mu.Lock()
	peak := proc.peak
	proc.mu.Unlock()
	assert.LessOrEqual(t, peak, float64(maxConcurrent), "ActivePipelines gauge observed above the configured MaxConcurrent")
	assert.Greater(t, peak, float64(1), "expected multiple node pipelines to overlap within a batch")
}

func TestTreeBuilder_NodeCompletedAlwaysPrecededByNodeProcessing(t *testing.T) {
	proc := fanOutProcessor{n: 4}
	c := testsupport.NewFixedClock(time.Unix(0, 0))
	ids := idgen.NewSequence("node-")
	tb := New(proc, ids, c, nil, nil, Config{MaxConcurrent: 20})

	sink := &recordingSink{}
	_, err := tb.Build(context.Background(), treemodel.SeedInput{Event: "X", MaxDepth: 2}, sink)
	require.NoError(t, err)

	seenProcessing := make(map[string]bool)
	for _, e := range sink.snapshot() {
		switch e.Type {
		case treemodel.EventNodeProcessing:
			seenProcessing[e.Data.(treemodel.NodeProcessingData).NodeID] = true
		case treemodel.EventNodeCompleted:
			nodeID := e.Data.(treemodel.NodeCompletedData).Node.ID
			assert.True(t, seenProcessing[nodeID], "node_completed for %s without preceding node_processing", nodeID)
		}
	}
}
