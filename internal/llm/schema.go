package llm

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// ToolParameters reflects v into a JSON Schema object suitable for
// ToolDefinition.Parameters, deriving tool schemas from Go structs
// rather than hand-writing them.
func ToolParameters(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		// Reflection over a concrete struct literal cannot fail to
		// marshal; a panic here means a programming error in the
		// caller's type, not a runtime condition to recover from.
		panic(fmt.Sprintf("llm: marshal reflected schema: %v", err))
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("llm: unmarshal reflected schema: %v", err))
	}
	return params
}

// ProbabilityOutputsSchema validates a synthesis completion's parsed JSON
// against the ProbabilityOutput array contract: 1-5 items, each with a
// non-empty event string of at least minEventLength runes and a
// probability in [0,1]. It intentionally does not require the
// probabilities to sum to one — that's treemodel.Normalize's job.
type ProbabilityOutputsSchema struct {
	MinItems    int
	MaxItems    int
	MinEventLen int
}

// NewProbabilityOutputsSchema builds the schema synthesis completions
// must satisfy, using treemodel's bounds.
func NewProbabilityOutputsSchema(minItems, maxItems, minEventLen int) ProbabilityOutputsSchema {
	return ProbabilityOutputsSchema{MinItems: minItems, MaxItems: maxItems, MinEventLen: minEventLen}
}

func (s ProbabilityOutputsSchema) Validate(value any) error {
	items, ok := value.([]any)
	if !ok {
		return fmt.Errorf("schema: expected a JSON array, got %T", value)
	}
	if len(items) < s.MinItems || len(items) > s.MaxItems {
		return fmt.Errorf("schema: expected between %d and %d items, got %d", s.MinItems, s.MaxItems, len(items))
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("schema: item %d: expected an object, got %T", i, item)
		}

		event, ok := obj["event"].(string)
		if !ok {
			return fmt.Errorf("schema: item %d: field %q: expected a string", i, "event")
		}
		if len([]rune(event)) < s.MinEventLen {
			return fmt.Errorf("schema: item %d: field %q: must be at least %d characters", i, "event", s.MinEventLen)
		}

		prob, ok := obj["probability"].(float64)
		if !ok {
			return fmt.Errorf("schema: item %d: field %q: expected a number", i, "probability")
		}
		if prob < 0 || prob > 1 {
			return fmt.Errorf("schema: item %d: field %q: must be within [0,1], got %v", i, "probability", prob)
		}
	}
	return nil
}

// DecodeProbabilityOutputs converts an already-validated []any into
// concrete ProbabilityOutputItem values. Callers must run
// Validate first; this performs no bounds checking of its own.
func DecodeProbabilityOutputs(value any) ([]ProbabilityOutputItem, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("schema: expected a JSON array, got %T", value)
	}

	out := make([]ProbabilityOutputItem, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: expected an object, got %T", item)
		}
		event, _ := obj["event"].(string)
		prob, _ := obj["probability"].(float64)
		out = append(out, ProbabilityOutputItem{Event: event, Probability: prob})
	}
	return out, nil
}

// ProbabilityOutputItem mirrors treemodel.ProbabilityOutput. internal/llm
// cannot import internal/treemodel's exact type without creating an
// import cycle risk as treemodel grows LLM-aware helpers, so pipeline
// code reads Event and Probability from these items directly when it
// builds child nodes.
type ProbabilityOutputItem struct {
	Event       string
	Probability float64
}
