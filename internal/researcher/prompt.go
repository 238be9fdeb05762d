package researcher

import (
	"fmt"
	"strings"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// buildTaskPrompt renders the research task prompt: state the event,
// optionally the seed path-so-far and context, request 3-5 diverse
// credible sources across historical precedent, causal mechanisms,
// predictions, and counter-evidence, and instruct the model to iterate
// with search and call finish_research when satisfied.
func buildTaskPrompt(event string, path []string, seed treemodel.SeedInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are researching the following event so a downstream model can estimate what happens next:\n\n%q\n\n", event)

	if len(path) > 1 {
		b.WriteString("Branching history leading to this event (root first):\n")
		for i, e := range path {
			fmt.Fprintf(&b, "%d. %s\n", i+1, e)
		}
		b.WriteString("\n")
	}

	if seed.Context != "" {
		fmt.Fprintf(&b, "Additional context supplied by the user: %s\n\n", seed.Context)
	}
	if seed.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe of interest: %s\n\n", seed.Timeframe)
	}
	if seed.Domain != "" {
		fmt.Fprintf(&b, "Domain of interest: %s\n\n", seed.Domain)
	}

	b.WriteString("Use the search tool to gather 3-5 diverse, credible sources covering: " +
		"historical precedent, causal mechanisms, expert predictions, and counter-evidence. " +
		"Avoid relying on a single domain. When you have enough evidence, call finish_research " +
		"with a concise summary and your confidence level (low, medium, or high).")

	return b.String()
}
