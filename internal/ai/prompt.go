package ai

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentsh/pkg/domain"
)

const basePrompt = `You are a shell operations assistant for agentsh.

RULES:
1. You NEVER run commands directly - only propose actions in JSON format
2. Prefer minimal, safe, auditable commands
3. Mark destructive operations (rm -rf, mkfs, dd, etc.) with is_destructive: true
4. Mark privileged operations with requires_sudo: true
5. Use available context instead of guessing system state

RESPONSE FORMAT:
Always respond with valid JSON matching this schema:
{
  "kind": "answer_only" | "command_sequence" | "plan_and_commands",
  "summary": "Brief explanation (optional)",
  "steps": [
    {
      "id": "step1",
      "description": "What this step does",
      "shell_command": "the command",
      "needs_confirmation": false,
      "is_destructive": false,
      "requires_sudo": false,
      "working_directory": null
    }
  ]
}
`

// buildSystemPrompt appends the mode-specific framing to the base rules.
func buildSystemPrompt(mode domain.QueryMode) string {
	switch mode {
	case domain.ModeExplain:
		return basePrompt + "\n\nFor this EXPLAIN request, respond with kind=\"answer_only\" and put your explanation in the summary field. Do NOT include any commands."
	case domain.ModeFix:
		return basePrompt + "\n\nFor this FIX request, analyze the error and propose commands to fix it. Explain what went wrong in the summary."
	case domain.ModeDo:
		return basePrompt + "\n\nFor this DO request, create a comprehensive multi-step plan. Use kind=\"plan_and_commands\" with detailed steps."
	case domain.ModeSysInfo:
		return basePrompt + "\n\nFor this SYSINFO request, propose commands to gather system information. Keep commands read-only and safe."
	default:
		return basePrompt
	}
}

// buildUserMessage frames the query with local context. Fix queries also
// carry the last failed command and its stderr.
func buildUserMessage(input string, ctx Context, mode domain.QueryMode) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Context:\n- OS: %s\n- CWD: %s\n- User: %s\n", ctx.OS, ctx.CWD, ctx.User)

	if mode == domain.ModeFix && ctx.HasFailure {
		fmt.Fprintf(&b, "- Last command: %s\n", ctx.LastCommand)
		fmt.Fprintf(&b, "- Exit code: %d\n", ctx.LastExitCode)
		if ctx.LastStderr != "" {
			fmt.Fprintf(&b, "- Error output:\n```\n%s\n```\n", ctx.LastStderr)
		}
	}

	fmt.Fprintf(&b, "\nRequest: %s", input)
	return b.String()
}
