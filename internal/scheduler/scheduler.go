// Package scheduler implements TreeBuilder: a depth-synchronous wave
// scheduler that owns the tree, dispatches bounded-concurrency batches
// of NodeProcessor pipelines per depth, and emits lifecycle events at
// every significant transition.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matthieujules/psychohistory/internal/clock"
	"github.com/matthieujules/psychohistory/internal/corelib/errs"
	"github.com/matthieujules/psychohistory/internal/idgen"
	"github.com/matthieujules/psychohistory/internal/metrics"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// DefaultMaxConcurrent is the default batch size.
const DefaultMaxConcurrent = 20

// EventSink receives events synchronously with the scheduler's
// progression. Implementations should be a non-blocking enqueue, e.g. a
// bounded channel drained by the stream endpoint.
type EventSink interface {
	Emit(event treemodel.TreeStreamEvent)
}

// Processor is the narrow interface TreeBuilder needs from
// pipeline.NodeProcessor.
type Processor interface {
	Process(ctx context.Context, node treemodel.EventNode, seed treemodel.SeedInput, path []string, maxDepth int) ([]treemodel.EventNode, error)
}

// Config configures one TreeBuilder build.
type Config struct {
	MaxConcurrent int
}

// TreeBuilder owns the tree for the lifetime of one build: every
// mutation to the by-id map goes through it; child pipeline tasks
// return values only.
type TreeBuilder struct {
	processor Processor
	ids       idgen.Source
	clock     clock.Clock
	metrics   *metrics.Registry
	log       *slog.Logger
	cfg       Config

	mu    sync.RWMutex
	byID  map[string]*treemodel.EventNode
	order []string
}

// New builds a TreeBuilder.
func New(processor Processor, ids idgen.Source, c clock.Clock, m *metrics.Registry, log *slog.Logger, cfg Config) *TreeBuilder {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = slog.Default()
	}
	return &TreeBuilder{
		processor: processor,
		ids:       ids,
		clock:     c,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		byID:      make(map[string]*treemodel.EventNode),
	}
}

// Build runs the full depth-synchronous wave algorithm and returns the
// root node on success.
func (b *TreeBuilder) Build(ctx context.Context, seed treemodel.SeedInput, sink EventSink) (*treemodel.EventNode, error) {
	start := b.clock.Now()
	maxDepth := seed.ClampedMaxDepth()

	root := &treemodel.EventNode{
		ID:               b.ids.NewID(),
		Event:            seed.Event,
		Probability:      1.0,
		Sentiment:        0,
		Depth:            0,
		CreatedAt:        b.clock.Now(),
		ProcessingStatus: treemodel.StatusPending,
	}
	b.register(root)
	sink.Emit(treemodel.NewTreeStartedEvent(root.Clone()))

	for depth := 0; depth < maxDepth; depth++ {
		frontier := b.frontierAt(depth)
		if len(frontier) == 0 {
			continue
		}

		nodesProcessed := 0
		for batchStart := 0; batchStart < len(frontier); batchStart += b.cfg.MaxConcurrent {
			batchEnd := min(batchStart+b.cfg.MaxConcurrent, len(frontier))
			batch := frontier[batchStart:batchEnd]

			if err := b.runBatch(ctx, batch, seed, maxDepth, sink); err != nil {
				return nil, err
			}
			nodesProcessed += len(batch)
		}

		sink.Emit(treemodel.NewDepthCompletedEvent(depth, nodesProcessed))
	}

	duration := b.clock.Now().Sub(start).Milliseconds()
	if b.metrics != nil {
		b.metrics.TreesBuilt.Inc()
	}
	sink.Emit(treemodel.NewTreeCompletedEvent(len(b.byID), duration))

	return b.snapshot(root.ID), nil
}

// runBatch dispatches every node in batch to the pipeline in parallel
// and waits for all of them before returning.
func (b *TreeBuilder) runBatch(ctx context.Context, batch []*treemodel.EventNode, seed treemodel.SeedInput, maxDepth int, sink EventSink) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, node := range batch {
		node := node
		g.Go(func() error {
			b.processNode(gctx, node, seed, maxDepth, sink)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		schedErr := &errs.SchedulerError{Reason: "batch dispatch failed", Err: err}
		sink.Emit(treemodel.NewErrorEvent(schedErr.Error(), ""))
		return schedErr
	}
	return nil
}

// processNode runs one node's pipeline and commits its outcome to the
// tree. It never returns an error, and it never lets a panic escape:
// processNode runs on an errgroup-spawned goroutine, not the caller's,
// so a recovered panic is converted to a SchedulerError and reported
// through an error event instead of crashing the process.
func (b *TreeBuilder) processNode(ctx context.Context, node *treemodel.EventNode, seed treemodel.SeedInput, maxDepth int, sink EventSink) {
	if b.metrics != nil {
		b.metrics.ActivePipelines.Inc()
		defer b.metrics.ActivePipelines.Dec()
	}

	defer func() {
		if rec := recover(); rec != nil {
			b.setStatus(node.ID, treemodel.StatusFailed)
			if b.metrics != nil {
				b.metrics.NodesProcessed.WithLabelValues("failed").Inc()
			}
			schedErr := &errs.SchedulerError{Reason: "panic in node pipeline", Err: fmt.Errorf("%v", rec)}
			b.log.Error("recovered from panic in node pipeline", "nodeId", node.ID, "panic", rec)
			sink.Emit(treemodel.NewErrorEvent(schedErr.Error(), node.ID))
		}
	}()

	b.setStatus(node.ID, treemodel.StatusProcessing)
	sink.Emit(treemodel.NewNodeProcessingEvent(node.ID, node.Depth, node.Event))

	path := b.pathTo(node.ID)
	nodeSnapshot := b.snapshot(node.ID)

	children, err := b.processor.Process(ctx, *nodeSnapshot, seed, path, maxDepth)
	if err != nil {
		b.setStatus(node.ID, treemodel.StatusFailed)
		if b.metrics != nil {
			b.metrics.NodesProcessed.WithLabelValues("failed").Inc()
		}
		msg := err.Error()
		b.log.Error("pipeline failed for node", "nodeId", node.ID, "error", msg)
		sink.Emit(treemodel.NewErrorEvent(msg, node.ID))
		return
	}

	b.commitChildren(node.ID, children)
	if b.metrics != nil {
		b.metrics.NodesProcessed.WithLabelValues("completed").Inc()
	}

	completed := b.snapshot(node.ID)
	sink.Emit(treemodel.NewNodeCompletedEvent(*completed, treemodel.CloneNodes(children)))
}

func (b *TreeBuilder) register(n *treemodel.EventNode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byID[n.ID] = n
	b.order = append(b.order, n.ID)
}

func (b *TreeBuilder) setStatus(id string, status treemodel.ProcessingStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.byID[id]; ok {
		n.ProcessingStatus = status
	}
}

// commitChildren installs children into the by-id map as pending and
// records them under the parent; this is the only point in the system
// that mutates the tree's edges.
func (b *TreeBuilder) commitChildren(parentID string, children []treemodel.EventNode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	parent, ok := b.byID[parentID]
	if !ok {
		return
	}
	parent.Children = children
	parent.ProcessingStatus = treemodel.StatusCompleted

	for i := range parent.Children {
		cp := &parent.Children[i]
		b.byID[cp.ID] = cp
		b.order = append(b.order, cp.ID)
	}
}

// frontierAt returns pointers to every node at depth with status
// pending, in registration order.
func (b *TreeBuilder) frontierAt(depth int) []*treemodel.EventNode {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*treemodel.EventNode
	for _, id := range b.order {
		n := b.byID[id]
		if n.Depth == depth && n.ProcessingStatus == treemodel.StatusPending {
			out = append(out, n)
		}
	}
	return out
}

// pathTo reconstructs the event strings from root to id, inclusive,
// root first.
func (b *TreeBuilder) pathTo(id string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var reversed []string
	for cur := id; cur != ""; {
		n, ok := b.byID[cur]
		if !ok {
			break
		}
		reversed = append(reversed, n.Event)
		cur = n.ParentID
	}

	path := make([]string, len(reversed))
	for i, e := range reversed {
		path[len(reversed)-1-i] = e
	}
	return path
}

// snapshot returns a deep-copied value, rooted at id, safe to hand
// across the scheduler's boundary.
func (b *TreeBuilder) snapshot(id string) *treemodel.EventNode {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n, ok := b.byID[id]
	if !ok {
		return nil
	}
	cp := n.Clone()
	return &cp
}
