package engine

import (
	"fmt"
	"strings"

	"github.com/aretw0/agentsh/internal/safety"
	"github.com/aretw0/agentsh/pkg/domain"
)

// maxPromptRetries bounds re-prompting on unrecognized input so adversarial
// input cannot grow the stack or spin forever.
const maxPromptRetries = 20

type userResponse int

const (
	responseAccept userResponse = iota
	responseEdit
	responseReject
	responseSkip
)

type failureAction int

const (
	failureContinue failureAction = iota
	failureRetry
	failureAbort
)

// displayPlan renders the proposed steps with their safety tags before the
// confirmation prompt.
func (e *Engine) displayPlan(action *domain.Action) {
	fmt.Fprintln(e.out)

	if action.Summary != "" {
		fmt.Fprintf(e.out, "%s\n\n", e.styles.Plan("Plan: "+action.Summary))
	}

	if !e.ui.ShowPlanBeforeExecution {
		return
	}

	fmt.Fprintln(e.out, "Proposed commands:")
	for i, step := range action.Steps {
		num := ""
		if e.ui.ShowStepNumbers {
			num = fmt.Sprintf("#%d: ", i+1)
		}

		flags := e.classifier.Analyze(step.ShellCommand)
		var tags []string
		if step.IsDestructive || flags.IsDestructive {
			tags = append(tags, "DESTRUCTIVE")
		}
		if step.RequiresSudo || flags.RequiresSudo {
			tags = append(tags, "SUDO")
		}
		if flags.AffectsCriticalService {
			tags = append(tags, "CRITICAL")
		}

		tagStr := ""
		if len(tags) > 0 {
			tagStr = "  " + e.styles.Tag("["+strings.Join(tags, "][")+"]")
		}

		fmt.Fprintf(e.out, "  %s%s%s\n", num, step.ShellCommand, tagStr)

		if step.Description != "" && step.Description != step.ShellCommand {
			fmt.Fprintf(e.out, "    %s\n", e.styles.Muted("-> "+step.Description))
		}
	}
	fmt.Fprintln(e.out)
}

// promptConfirmation asks for the plan-level decision. Empty input accepts;
// unrecognized input re-prompts up to the retry bound.
func (e *Engine) promptConfirmation() (userResponse, error) {
	for i := 0; i < maxPromptRetries; i++ {
		line, err := e.readLine("Run these? [y/e/n/s] ")
		if err != nil {
			return responseReject, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "":
			return responseAccept, nil
		case "e", "edit":
			return responseEdit, nil
		case "n", "no":
			return responseReject, nil
		case "s", "skip":
			return responseSkip, nil
		default:
			fmt.Fprintln(e.out, "Invalid response. Use y/e/n/s.")
		}
	}
	return responseReject, &domain.CommandFailedError{Reason: "too many invalid confirmation responses"}
}

// confirmDangerousStep shows a warning screen listing every flagged concern.
// Only the literal token "yes" (case-insensitive) proceeds; anything else,
// including empty input, skips this step.
func (e *Engine) confirmDangerousStep(step domain.Step, flags *safety.Flags) (bool, error) {
	fmt.Fprintf(e.out, "\n%s\n", e.styles.Warning("WARNING: This command has safety concerns:"))
	for _, warning := range flags.Warnings {
		fmt.Fprintf(e.out, "  - %s\n", warning)
	}
	fmt.Fprintf(e.out, "\nCommand: %s\n", step.ShellCommand)

	line, err := e.readLine("\nType 'yes' to confirm: ")
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "yes"), nil
}

// promptFailureAction asks what to do after a failed step. Empty input
// continues; unrecognized input re-prompts up to the retry bound.
func (e *Engine) promptFailureAction() (failureAction, error) {
	for i := 0; i < maxPromptRetries; i++ {
		line, err := e.readLine("Step failed. [c]ontinue / [r]etry / [a]bort? ")
		if err != nil {
			return failureAbort, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "c", "continue", "":
			return failureContinue, nil
		case "r", "retry":
			return failureRetry, nil
		case "a", "abort":
			return failureAbort, nil
		default:
			fmt.Fprintln(e.out, "Invalid response. Use c/r/a.")
		}
	}
	return failureAbort, &domain.CommandFailedError{Reason: "too many invalid failure responses"}
}

// editSteps runs the per-step edit sub-flow. Quitting aborts the whole
// action; an edit with empty input keeps the original command.
func (e *Engine) editSteps(steps []domain.Step) ([]domain.Step, error) {
	fmt.Fprintln(e.out, "\n--- Edit Mode ---")
	fmt.Fprintln(e.out, "For each step: [Enter] to keep, [e] to edit, [s] to skip, [q] to quit")
	fmt.Fprintln(e.out)

	var edited []domain.Step

	for i, step := range steps {
		fmt.Fprintf(e.out, "Step %d/%d: %s\n", i+1, len(steps), step.Description)
		fmt.Fprintf(e.out, "  Command: %s\n", step.ShellCommand)

		line, err := e.readLine("  [Enter/e/s/q]: ")
		if err != nil {
			return nil, err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "k", "keep":
			edited = append(edited, step)
		case "e", "edit":
			replacement, err := e.readLine("  New command: ")
			if err != nil {
				return nil, err
			}
			replacement = strings.TrimSpace(replacement)
			if replacement != "" {
				step.ShellCommand = replacement
				edited = append(edited, step)
				fmt.Fprintln(e.out, "  Updated")
			} else {
				edited = append(edited, step)
				fmt.Fprintln(e.out, "  Kept original")
			}
		case "s", "skip":
			fmt.Fprintln(e.out, "  Skipped")
		case "q", "quit":
			fmt.Fprintln(e.out, "\nEdit cancelled.")
			return nil, domain.ErrCancelled
		default:
			// Unknown input keeps the step.
			edited = append(edited, step)
		}
	}

	if len(edited) == 0 {
		fmt.Fprintln(e.out, "\nNo steps to execute.")
		return nil, domain.ErrCancelled
	}

	fmt.Fprintf(e.out, "\n--- %d step(s) ready to execute ---\n\n", len(edited))
	return edited, nil
}

// readLine writes a prompt and reads one line from the prompt stream.
// I/O failures propagate and terminate the current prompt loop.
func (e *Engine) readLine(prompt string) (string, error) {
	if _, err := fmt.Fprint(e.out, prompt); err != nil {
		return "", &domain.CommandFailedError{Reason: err.Error()}
	}
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" {
		return "", &domain.CommandFailedError{Reason: err.Error()}
	}
	return line, nil
}
