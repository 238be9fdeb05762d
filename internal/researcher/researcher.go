// Package researcher implements AgenticResearcher: an iterative
// tool-calling loop that directs a capability-rich LLM through search
// and finish_research tools, accumulating deduplicated sources under an
// iteration cap and a wall-clock budget.
package researcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/matthieujules/psychohistory/internal/clock"
	"github.com/matthieujules/psychohistory/internal/llm"
	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// Budgets bounding one research loop.
const (
	MaxIterations = 5
	SearchTimeout = 60 * time.Second
	MinSources    = 3
)

// SearchClient is the narrow interface AgenticResearcher needs from the
// rate-limited, retrying search.Client (internal/search), kept
// independent so tests can substitute a testsupport double without
// importing internal/search.
type SearchClient interface {
	Search(ctx context.Context, query string) ([]treemodel.Source, error)
}

// AgenticResearcher drives Phase 1 of the node pipeline.
type AgenticResearcher struct {
	llm    llm.Client
	search SearchClient
	clock  clock.Clock
	log    *slog.Logger
}

// New builds an AgenticResearcher.
func New(llmClient llm.Client, searchClient SearchClient, c clock.Clock, log *slog.Logger) *AgenticResearcher {
	if log == nil {
		log = slog.Default()
	}
	return &AgenticResearcher{llm: llmClient, search: searchClient, clock: c, log: log}
}

// Research runs the agentic loop for one node's event, returning the
// accumulated ResearchResult. It never returns an error: a failed
// completion ends the loop and returns the sources gathered so far with
// confidence "low". When the loop ends any other way short of
// finish_research, including by exhausting the iteration or wall-clock
// budget, confidence is "medium" if at least MinSources sources were
// gathered and "low" otherwise.
func (r *AgenticResearcher) Research(ctx context.Context, event string, path []string, seed treemodel.SeedInput) treemodel.ResearchResult {
	start := r.clock.Now()
	messages := []llm.Message{{Role: "user", Content: buildTaskPrompt(event, path, seed)}}
	tools := toolDefinitions()

	var accumulated []treemodel.Source
	var queries []string
	executedQueries := make(map[string]bool)
	seenDomains := make(map[string]bool)
	confidence := treemodel.ConfidenceLow
	lastIteration := 0

	for i := 1; i <= MaxIterations; i++ {
		lastIteration = i
		if r.clock.Now().Sub(start) > SearchTimeout {
			r.log.Warn("researcher: wall-clock budget exceeded", "iteration", i)
			break
		}

		assistant, err := r.llm.CompleteWithTools(ctx, messages, tools, llm.ToolChoiceAuto)
		if err != nil {
			r.log.Warn("researcher: completion failed, returning partial result", "iteration", i, "error", err)
			return treemodel.ResearchResult{
				Sources:    accumulated,
				Summary:    "Research completed through iterative search",
				Confidence: treemodel.ConfidenceLow,
				Iterations: i,
				Queries:    queries,
			}
		}

		if len(assistant.ToolCalls) == 0 {
			// Natural termination: the model chose not to call a tool.
			break
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: assistant.Content, ToolCalls: assistant.ToolCalls})

		searchedThisIteration := false

		for _, call := range assistant.ToolCalls {
			switch call.Name {
			case toolNameFinishResearch:
				var args finishArgs
				if err := decodeArgs(call.Arguments, &args); err != nil {
					r.log.Warn("researcher: malformed finish_research arguments", "error", err)
					continue
				}
				// Return immediately: a trailing search call in the same
				// message must not execute once finish_research has fired.
				return treemodel.ResearchResult{
					Sources:    accumulated,
					Summary:    args.Summary,
					Confidence: treemodel.Confidence(args.Confidence),
					Iterations: i,
					Queries:    queries,
				}

			case toolNameSearch:
				var args searchArgs
				if err := decodeArgs(call.Arguments, &args); err != nil {
					messages = append(messages, toolResultMessage(call, map[string]any{"error": "malformed arguments"}))
					continue
				}

				if executedQueries[args.Query] {
					messages = append(messages, toolResultMessage(call, map[string]any{"error": "Duplicate query"}))
					continue
				}
				executedQueries[args.Query] = true
				queries = append(queries, args.Query)

				sources, err := r.search.Search(ctx, args.Query)
				if err != nil {
					r.log.Warn("researcher: search call failed", "query", args.Query, "error", err)
					messages = append(messages, toolResultMessage(call, map[string]any{"error": err.Error()}))
					continue
				}

				fresh := treemodel.DedupeByHostname(sources, seenDomains)
				accumulated = append(accumulated, fresh...)
				searchedThisIteration = true

				messages = append(messages, toolResultMessage(call, map[string]any{
					"sources":                fresh,
					"total_sources_gathered": len(accumulated),
				}))

			default:
				messages = append(messages, toolResultMessage(call, map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}))
			}
		}

		if len(accumulated) >= MinSources && i >= 2 && !searchedThisIteration {
			break
		}
	}

	if len(accumulated) >= MinSources {
		confidence = treemodel.ConfidenceMedium
	}

	return treemodel.ResearchResult{
		Sources:    accumulated,
		Summary:    "Research completed through iterative search",
		Confidence: confidence,
		Iterations: lastIteration,
		Queries:    queries,
	}
}

func decodeArgs(raw string, out any) error {
	var generic map[string]any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return fmt.Errorf("researcher: unmarshal tool arguments: %w", err)
	}
	if err := mapstructure.Decode(generic, out); err != nil {
		return fmt.Errorf("researcher: decode tool arguments: %w", err)
	}
	return nil
}

func toolResultMessage(call llm.ToolCall, payload map[string]any) llm.Message {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(`{"error":"failed to encode tool result"}`)
	}
	return llm.Message{Role: "tool", ToolCallID: call.ID, Name: call.Name, Content: string(encoded)}
}
