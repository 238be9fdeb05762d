package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSONText pulls the JSON payload out of a completion's raw text:
// strips a fenced ```json ... ``` block if present, otherwise returns
// the trimmed text as-is. Concrete Client implementations call this
// before unmarshaling, since models often wrap strict-JSON responses in
// a markdown code fence despite being asked not to.
func ExtractJSONText(raw string) string {
	raw = strings.TrimSpace(raw)
	if m := fencedBlockPattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return raw
}

// ParseJSONWithRepair unmarshals text into a generic value, falling
// back to github.com/kaptinlin/jsonrepair when the first parse fails, to
// tolerate near-miss JSON from LLM completions: trailing commas,
// unquoted keys, stray trailing text.
func ParseJSONWithRepair(text string) (any, error) {
	text = ExtractJSONText(text)

	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return value, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return nil, fmt.Errorf("parse json: unrepairable: %w", repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, fmt.Errorf("parse json: repaired text still invalid: %w", err)
	}
	return value, nil
}
