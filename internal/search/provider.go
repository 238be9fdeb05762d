// Package search implements a rate-limited, retrying search client: a
// sliding-window limiter guarding an abstract provider, wrapped in an
// exponential-backoff retry ladder for transient failures.
package search

import (
	"context"
	"strconv"

	"github.com/matthieujules/psychohistory/internal/treemodel"
)

// Provider is the abstract search provider interface: search(query) ->
// [Source]. Concrete HTTP-backed providers are not included here;
// Client wraps whatever Provider it is given with rate limiting and
// retries.
type Provider interface {
	Search(ctx context.Context, query string) ([]treemodel.Source, error)
}

// RetryableError marks a Provider error as eligible for the retry
// ladder (HTTP 429 or a network-level failure).
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return e.Message + ": http " + strconv.Itoa(e.StatusCode)
	}
	return e.Message
}

func (e *RetryableError) Unwrap() error { return e.Err }
