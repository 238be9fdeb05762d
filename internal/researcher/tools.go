package researcher

import "github.com/matthieujules/psychohistory/internal/llm"

const (
	toolNameSearch         = "search"
	toolNameFinishResearch = "finish_research"
)

// searchArgs is the decoded argument payload for the search tool.
type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query to execute"`
}

// finishArgs is the decoded argument payload for finish_research.
type finishArgs struct {
	Summary    string `json:"summary" jsonschema:"required,description=A summary of the research findings"`
	Confidence string `json:"confidence" jsonschema:"required,enum=low,enum=medium,enum=high,description=Self-reported confidence in the research"`
}

// toolDefinitions builds the two tool schemas, deriving parameter
// schemas from Go structs via invopop/jsonschema reflection instead of
// hand-written maps.
func toolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        toolNameSearch,
			Description: "Execute one search against the search provider and return matching sources.",
			Parameters:  llm.ToolParameters(searchArgs{}),
		},
		{
			Name:        toolNameFinishResearch,
			Description: "Signal that research is complete and report a summary and confidence level.",
			Parameters:  llm.ToolParameters(finishArgs{}),
		},
	}
}
