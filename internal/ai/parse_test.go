package ai

import (
	"testing"

	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectJSON(t *testing.T) {
	action := Parse(`{"kind": "answer_only", "summary": "This is the answer"}`, nil)
	assert.Equal(t, domain.ActionAnswerOnly, action.Kind)
	assert.Equal(t, "This is the answer", action.Summary)
}

func TestParseCommandSequence(t *testing.T) {
	action := Parse(`{
		"kind": "command_sequence",
		"summary": "List files",
		"steps": [
			{"id": "step1", "description": "List all files", "shell_command": "ls -la"}
		]
	}`, nil)

	assert.Equal(t, domain.ActionCommandSequence, action.Kind)
	require.Len(t, action.Steps, 1)
	assert.Equal(t, "ls -la", action.Steps[0].ShellCommand)
	assert.True(t, action.HasCommands())
}

func TestParseFencedJSON(t *testing.T) {
	text := "Here's the response:\n```json\n{\"kind\": \"answer_only\", \"summary\": \"fenced\"}\n```\n"
	action := Parse(text, nil)
	assert.Equal(t, domain.ActionAnswerOnly, action.Kind)
	assert.Equal(t, "fenced", action.Summary)
}

func TestParseEmbeddedJSONObject(t *testing.T) {
	text := `Sure! {"kind": "command_sequence", "steps": [{"id": "s1", "description": "d", "shell_command": "ls"}]} hope that helps`
	action := Parse(text, nil)
	assert.Equal(t, domain.ActionCommandSequence, action.Kind)
	require.Len(t, action.Steps, 1)
}

func TestParseFallbackToAnswerOnly(t *testing.T) {
	action := Parse("Just plain text", nil)
	assert.Equal(t, domain.ActionAnswerOnly, action.Kind)
	assert.Equal(t, "Just plain text", action.Summary)
	assert.False(t, action.HasCommands())
}

func TestParseBackfillsMissingStepIDs(t *testing.T) {
	action := Parse(`{
		"kind": "command_sequence",
		"steps": [
			{"description": "first", "shell_command": "ls"},
			{"id": "keep-me", "description": "second", "shell_command": "pwd"}
		]
	}`, nil)

	require.Len(t, action.Steps, 2)
	assert.NotEmpty(t, action.Steps[0].ID)
	assert.Equal(t, "keep-me", action.Steps[1].ID)
}

func TestExtractFencedJSON(t *testing.T) {
	json, ok := extractFencedJSON("intro\n```json\n{\"a\": 1}\n```\noutro")
	require.True(t, ok)
	assert.Contains(t, json, `"a": 1`)

	_, ok = extractFencedJSON("no fences here")
	assert.False(t, ok)
}

func TestExtractJSONObject(t *testing.T) {
	json, ok := extractJSONObject(`Some text {"key": "value"} more text`)
	require.True(t, ok)
	assert.Equal(t, `{"key": "value"}`, json)

	_, ok = extractJSONObject("unbalanced { only")
	assert.False(t, ok)
}

func TestExtractJSONObjectNested(t *testing.T) {
	json, ok := extractJSONObject(`x {"outer": {"inner": 2}} y`)
	require.True(t, ok)
	assert.Equal(t, `{"outer": {"inner": 2}}`, json)
}
