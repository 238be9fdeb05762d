// Package errs declares the error taxonomy as concrete
// Go types, so callers can distinguish recovery strategy with errors.As
// instead of string matching.
package errs

import "fmt"

// ValidationError means the inbound request was malformed; the stream
// endpoint answers 400 and never opens a stream.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// TransportError means an LLM or search HTTP call failed. Retryable
// reports whether the retry ladder should keep trying.
type TransportError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError means a model response failed JSON-schema validation after
// a (possible) repair attempt.
type SchemaError struct {
	Op  string
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %v", e.Op, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PipelineError means both research and synthesis (and fallback
// construction) failed irrecoverably for one node.
type PipelineError struct {
	NodeID string
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline: node %s: %v", e.NodeID, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// SchedulerError means an invariant was violated or the event sink write
// failed fatally; the scheduler aborts the whole build.
type SchedulerError struct {
	Reason string
	Err    error
}

func (e *SchedulerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scheduler: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("scheduler: %s", e.Reason)
}

func (e *SchedulerError) Unwrap() error { return e.Err }
