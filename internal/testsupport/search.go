package testsupport

import (
	"context"
	"sync"
	"time"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// StampingSearchProvider records the arrival time of every call it
// receives before returning a scripted result, so rate-limit
// rolling-window tests can assert on call spacing.
type StampingSearchProvider struct {
	clock interface{ Now() time.Time }

	mu         sync.Mutex
	arrivals   []time.Time
	results    []searchResult
	callsSeen  int
	failBefore int // number of leading calls that return the scripted error, e.g. simulating repeated 429s
	failErr    error
}

type searchResult struct {
	sources []treemodel.Source
	err     error
}

// NewStampingSearchProvider builds a provider that returns sources for
// every query (a fixed three-source page, mirroring search.MockProvider)
// and records the clock's Now() at each call.
func NewStampingSearchProvider(c interface{ Now() time.Time }) *StampingSearchProvider {
	return &StampingSearchProvider{clock: c}
}

// FailFirstN configures the first n calls to return err (e.g. a
// *search.RetryableError simulating HTTP 429) before calls succeed, for
// exercising retry-then-succeed behavior.
func (p *StampingSearchProvider) FailFirstN(n int, err error) *StampingSearchProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBefore = n
	p.failErr = err
	return p
}

func (p *StampingSearchProvider) Search(_ context.Context, query string) ([]treemodel.Source, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.arrivals = append(p.arrivals, p.clock.Now())
	call := p.callsSeen
	p.callsSeen++

	if call < p.failBefore {
		return nil, p.failErr
	}

	return []treemodel.Source{
		{URL: "https://example.com/a/" + query, Title: "A", Snippet: "a"},
		{URL: "https://example.org/b/" + query, Title: "B", Snippet: "b"},
		{URL: "https://example.net/c/" + query, Title: "C", Snippet: "c"},
	}, nil
}

// Arrivals returns a copy of the recorded call timestamps in call order.
func (p *StampingSearchProvider) Arrivals() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, len(p.arrivals))
	copy(out, p.arrivals)
	return out
}
