package testsupport

import (
	"context"
	"fmt"
	"sync"

	"github.com/matthieujules/psychohistory/internal/llm"
)

// ToolCallScript describes one scripted assistant turn returned by
// MockLLM.CompleteWithTools.
type ToolCallScript struct {
	Message llm.AssistantMessage
	Err     error
}

// MockLLM is a deterministic, scripted llm.Client for tests. Each
// method consumes the next scripted response from its own queue;
// running past the end of a queue is a test-authoring bug and panics
// loudly rather than returning a confusing zero value.
type MockLLM struct {
	mu sync.Mutex

	completions []completionScript
	jsonResults []jsonScript
	toolTurns   []ToolCallScript
}

type completionScript struct {
	text string
	err  error
}

type jsonScript struct {
	value any
	err   error
}

// NewMockLLM builds an empty scripted client; use the With* methods to
// queue responses before handing it to the component under test.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) WithCompletion(text string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, completionScript{text: text})
	return m
}

func (m *MockLLM) WithCompletionError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completions = append(m.completions, completionScript{err: err})
	return m
}

func (m *MockLLM) WithJSON(value any) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jsonResults = append(m.jsonResults, jsonScript{value: value})
	return m
}

func (m *MockLLM) WithJSONError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jsonResults = append(m.jsonResults, jsonScript{err: err})
	return m
}

func (m *MockLLM) WithToolTurn(msg llm.AssistantMessage) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolTurns = append(m.toolTurns, ToolCallScript{Message: msg})
	return m
}

func (m *MockLLM) WithToolTurnError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolTurns = append(m.toolTurns, ToolCallScript{Err: err})
	return m
}

func (m *MockLLM) Complete(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.completions) == 0 {
		panic("testsupport: MockLLM.Complete called with no scripted response remaining")
	}
	next := m.completions[0]
	m.completions = m.completions[1:]
	return next.text, next.err
}

func (m *MockLLM) CompleteJSON(_ context.Context, _ string, schema llm.Schema) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jsonResults) == 0 {
		panic("testsupport: MockLLM.CompleteJSON called with no scripted response remaining")
	}
	next := m.jsonResults[0]
	m.jsonResults = m.jsonResults[1:]
	if next.err != nil {
		return nil, next.err
	}
	if schema != nil {
		if err := schema.Validate(next.value); err != nil {
			return nil, fmt.Errorf("testsupport: scripted json failed schema validation: %w", err)
		}
	}
	return next.value, nil
}

func (m *MockLLM) CompleteWithTools(_ context.Context, _ []llm.Message, _ []llm.ToolDefinition, _ llm.ToolChoice) (llm.AssistantMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.toolTurns) == 0 {
		panic("testsupport: MockLLM.CompleteWithTools called with no scripted response remaining")
	}
	next := m.toolTurns[0]
	m.toolTurns = m.toolTurns[1:]
	return next.Message, next.Err
}

var _ llm.Client = (*MockLLM)(nil)
