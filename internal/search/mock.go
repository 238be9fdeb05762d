package search

import (
	"context"
	"fmt"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// MockProvider returns three deterministic synthetic sources per query.
// It backs the offline-functional SEARCH_PROVIDER=mock configuration,
// letting the rest of the pipeline run end-to-end without network
// access.
type MockProvider struct{}

func (MockProvider) Search(_ context.Context, query string) ([]treemodel.Source, error) {
	return []treemodel.Source{
		{
			URL:     fmt.Sprintf("https://example.com/articles/%s-1", slug(query)),
			Title:   fmt.Sprintf("Historical precedent for %s", query),
			Snippet: fmt.Sprintf("An analysis of past events resembling %q and their outcomes.", query),
		},
		{
			URL:     fmt.Sprintf("https://example.org/reports/%s-2", slug(query)),
			Title:   fmt.Sprintf("Causal mechanisms behind %s", query),
			Snippet: fmt.Sprintf("A mechanistic account of the forces driving %q.", query),
		},
		{
			URL:     fmt.Sprintf("https://example.net/forecasts/%s-3", slug(query)),
			Title:   fmt.Sprintf("Expert forecasts on %s", query),
			Snippet: fmt.Sprintf("Forward-looking predictions and counter-evidence regarding %q.", query),
		},
	}, nil
}

func slug(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '-')
		}
	}
	if len(out) == 0 {
		return "query"
	}
	return string(out)
}
