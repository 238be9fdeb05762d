package pipeline

import (
	"fmt"
	"strings"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// formatResearchBlock renders a research result as the human-readable
// block: "Research Summary (confidence): ...", the ordered list of
// executed queries, and each source as "title / url / snippet"
// separated by horizontal rules.
func formatResearchBlock(result treemodel.ResearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Research Summary (%s confidence): %s\n\n", result.Confidence, result.Summary)

	if len(result.Queries) > 0 {
		b.WriteString("Queries executed:\n")
		for _, q := range result.Queries {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	for i, s := range result.Sources {
		if i > 0 {
			b.WriteString("---\n")
		}
		fmt.Fprintf(&b, "%s / %s / %s\n", s.Title, s.URL, s.Snippet)
	}

	return b.String()
}

// buildSynthesisPrompt renders the probability-synthesis prompt: state
// the seed (if different), the path-so-far, the current event, the
// current depth and max depth, the timeframe, and the research text;
// require 1-5 outcomes summing to 1, strict JSON output.
func buildSynthesisPrompt(seed treemodel.SeedInput, path []string, event string, depth, maxDepth int, researchBlock string) string {
	var b strings.Builder

	if seed.Event != "" && seed.Event != event {
		fmt.Fprintf(&b, "Seed event: %s\n", seed.Event)
	}
	if len(path) > 1 {
		b.WriteString("Path so far: " + strings.Join(path, " -> ") + "\n")
	}
	fmt.Fprintf(&b, "Current event: %s\n", event)
	fmt.Fprintf(&b, "Current depth: %d of %d\n", depth, maxDepth)
	if seed.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe: %s\n", seed.Timeframe)
	}
	b.WriteString("\nResearch:\n")
	b.WriteString(researchBlock)

	b.WriteString("\nBased on the above, propose between 1 and 5 specific, measurable follow-on outcomes " +
		"whose probabilities sum to 1. Respond with strict JSON only, no prose, in the form " +
		`[{"event": "...", "probability": 0.0}, ...].`)

	return b.String()
}
