// Package pipeline implements NodeProcessor: the two-phase per-node
// pipeline (agentic research, then probability synthesis) that turns
// one EventNode into its children, with a fallback path when either
// phase fails irrecoverably.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthieujules/psychohistory/internal/clock"
	"github.com/matthieujules/psychohistory/internal/corelib/errs"
	"github.com/matthieujules/psychohistory/internal/idgen"
	"github.com/matthieujules/psychohistory/internal/llm"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// MaxSynthesisRetries and SynthesisBaseDelay implement the synthesis
// retry policy: on schema failure, retry up to 3 times with exponential
// backoff starting at 1s.
const (
	MaxSynthesisRetries = 3
	SynthesisBaseDelay  = 1 * time.Second
)

// FixedJustification is the justification recorded on every
// successfully synthesized child; the synthesis schema asks the model
// for an event and a probability only, not a rationale.
const FixedJustification = "Based on historical research and analysis"

// Researcher is the narrow interface NodeProcessor needs from
// researcher.AgenticResearcher.
type Researcher interface {
	Research(ctx context.Context, event string, path []string, seed treemodel.SeedInput) treemodel.ResearchResult
}

// NodeProcessor turns one node into 1-5 children.
type NodeProcessor struct {
	llm        llm.Client
	researcher Researcher
	ids        idgen.Source
	clock      clock.Clock
	log        *slog.Logger
}

// New builds a NodeProcessor.
func New(llmClient llm.Client, researcher Researcher, ids idgen.Source, c clock.Clock, log *slog.Logger) *NodeProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &NodeProcessor{llm: llmClient, researcher: researcher, ids: ids, clock: c, log: log}
}

// Process runs the two-phase pipeline for node, given the reconstructed
// path from root to node (inclusive, root first) and the seed that
// started the tree. It returns the node's children or a PipelineError
// if even fallback construction failed.
func (p *NodeProcessor) Process(ctx context.Context, node treemodel.EventNode, seed treemodel.SeedInput, path []string, maxDepth int) ([]treemodel.EventNode, error) {
	research := p.researcher.Research(ctx, node.Event, path, seed)

	if len(research.Sources) == 0 {
		p.log.Warn("pipeline: zero research sources, falling back", "nodeId", node.ID, "event", node.Event)
		return p.fallbackOrPipelineError(node)
	}

	researchBlock := formatResearchBlock(research)
	prompt := buildSynthesisPrompt(seed, path, node.Event, node.Depth, maxDepth, researchBlock)
	schema := llm.NewProbabilityOutputsSchema(treemodel.MinProbabilityOutputs, treemodel.MaxProbabilityOutputs, treemodel.MinEventLength)

	items, err := p.synthesizeWithRetry(ctx, prompt, schema)
	if err != nil {
		p.log.Warn("pipeline: synthesis exhausted retries, falling back", "nodeId", node.ID, "error", err)
		return p.fallbackOrPipelineError(node)
	}

	probs := make([]float64, len(items))
	for i, it := range items {
		probs[i] = it.Probability
	}
	normalized, ok := treemodel.Renormalize(probs)
	if !ok {
		p.log.Warn("pipeline: could not renormalize synthesis output, falling back", "nodeId", node.ID)
		return p.fallbackOrPipelineError(node)
	}

	sources := treemodel.CapSources(research.Sources)
	children := make([]treemodel.EventNode, len(items))
	for i, it := range items {
		children[i] = treemodel.EventNode{
			ID:               p.ids.NewID(),
			Event:            it.Event,
			Probability:      normalized[i],
			Justification:    FixedJustification,
			Sentiment:        0,
			Depth:            node.Depth + 1,
			Sources:          sources,
			ParentID:         node.ID,
			CreatedAt:        p.clock.Now(),
			ProcessingStatus: treemodel.StatusPending,
		}
	}
	return children, nil
}

// synthesizeWithRetry calls CompleteJSON up to 1+MaxSynthesisRetries
// times, backing off exponentially from SynthesisBaseDelay between
// attempts on schema failure.
func (p *NodeProcessor) synthesizeWithRetry(ctx context.Context, prompt string, schema llm.Schema) ([]llm.ProbabilityOutputItem, error) {
	var lastErr error
	delay := SynthesisBaseDelay

	for attempt := 0; attempt <= MaxSynthesisRetries; attempt++ {
		value, err := p.llm.CompleteJSON(ctx, prompt, schema)
		if err == nil {
			items, decodeErr := llm.DecodeProbabilityOutputs(value)
			if decodeErr == nil {
				return items, nil
			}
			err = decodeErr
		}

		lastErr = err
		if attempt == MaxSynthesisRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(delay):
		}
		delay *= 2
	}

	return nil, &errs.SchemaError{Op: "synthesis", Err: fmt.Errorf("exhausted %d retries: %w", MaxSynthesisRetries, lastErr)}
}

// fallbackOrPipelineError calls fallback and wraps any error it returns
// as a PipelineError, the terminal failure reported up to the scheduler
// when neither research, synthesis, nor fallback construction could
// produce children for a node.
func (p *NodeProcessor) fallbackOrPipelineError(node treemodel.EventNode) ([]treemodel.EventNode, error) {
	children, err := p.fallback(node)
	if err != nil {
		return nil, &errs.PipelineError{NodeID: node.ID, Err: err}
	}
	return children, nil
}

// fallback produces a two-child degenerate subtree: a status-quo branch
// and an unexpected-development branch, each with empty justification
// since no research or synthesis backs them.
func (p *NodeProcessor) fallback(node treemodel.EventNode) ([]treemodel.EventNode, error) {
	now := p.clock.Now()
	children := []treemodel.EventNode{
		{
			ID:               p.ids.NewID(),
			Event:            "status quo continues from: " + node.Event,
			Probability:      0.5,
			Justification:    "",
			Sentiment:        0,
			Depth:            node.Depth + 1,
			ParentID:         node.ID,
			CreatedAt:        now,
			ProcessingStatus: treemodel.StatusPending,
		},
		{
			ID:               p.ids.NewID(),
			Event:            "unexpected development from: " + node.Event,
			Probability:      0.5,
			Justification:    "",
			Sentiment:        -10,
			Depth:            node.Depth + 1,
			ParentID:         node.ID,
			CreatedAt:        now,
			ProcessingStatus: treemodel.StatusPending,
		},
	}
	return children, nil
}
