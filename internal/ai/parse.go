package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/google/uuid"
)

// Parse turns a raw model response into an action. Parsing is forgiving:
// direct JSON first, then a markdown code fence, then the first balanced
// JSON object anywhere in the text. Anything unparseable becomes an
// answer-only action carrying the raw text.
func Parse(response string, logger *slog.Logger) *domain.Action {
	if action := tryUnmarshal(response); action != nil {
		return action
	}

	if jsonStr, ok := extractFencedJSON(response); ok {
		if action := tryUnmarshal(jsonStr); action != nil {
			return action
		}
	}

	if jsonStr, ok := extractJSONObject(response); ok {
		if action := tryUnmarshal(jsonStr); action != nil {
			return action
		}
	}

	if logger != nil {
		logger.Warn("could not parse AI response as JSON, treating as answer-only")
	}
	return domain.AnswerOnly(response)
}

func tryUnmarshal(s string) *domain.Action {
	var action domain.Action
	if err := json.Unmarshal([]byte(s), &action); err != nil {
		return nil
	}
	if action.Kind == "" {
		return nil
	}
	ensureStepIDs(&action)
	return &action
}

// ensureStepIDs backfills missing step IDs so retry results can always be
// correlated to their step.
func ensureStepIDs(action *domain.Action) {
	for i := range action.Steps {
		if action.Steps[i].ID == "" {
			action.Steps[i].ID = fmt.Sprintf("step-%s", uuid.NewString()[:8])
		}
	}
}

// extractFencedJSON pulls the body of the first markdown code fence.
func extractFencedJSON(text string) (string, bool) {
	for _, fence := range []string{"```json\n", "```JSON\n", "```\n"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		body := text[start+len(fence):]
		end := strings.Index(body, "```")
		if end < 0 {
			continue
		}
		return body[:end], true
	}
	return "", false
}

// extractJSONObject finds the first balanced top-level JSON object.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
