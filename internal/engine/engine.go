// Package engine turns an AI-proposed action into zero or more supervised
// process executions.
//
// Every action passes a confirmation workflow before anything runs: the plan
// is displayed, the user accepts/edits/rejects/skips it, each step is
// re-analyzed by the safety classifier, dangerous steps require a literal
// "yes", and failures offer continue/retry/abort. Step execution is strictly
// sequential; each step's prompts depend on the previous step's observed
// result.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/logging"
	"github.com/aretw0/agentsh/internal/presentation/tui"
	"github.com/aretw0/agentsh/internal/safety"
	"github.com/aretw0/agentsh/pkg/domain"
)

// Memory holds the outcome of the most recently executed step. A later
// "ai fix" query feeds these fields back to the orchestrator.
type Memory struct {
	LastCommand  string
	LastExitCode int
	LastStderr   string
	HasRun       bool
}

// Recorder receives one record per supervised execution attempt. The audit
// logger implements it; tests substitute their own.
type Recorder interface {
	Record(command string, flags []string, exitCode int, blocked bool)
}

// Engine manages confirmation and execution of AI actions.
type Engine struct {
	classifier *safety.Classifier
	ui         config.UIPolicy

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	styles   *tui.Styles
	recorder Recorder
	logger   *slog.Logger

	memory Memory
}

// Option configures an Engine.
type Option func(*Engine)

// WithIO replaces the prompt and output streams (tests use buffers).
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(e *Engine) {
		e.in = bufio.NewReader(in)
		e.out = out
		e.errOut = errOut
	}
}

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger replaces the no-op default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an execution engine bound to a classifier and UI policy.
func New(classifier *safety.Classifier, ui config.UIPolicy, opts ...Option) *Engine {
	e := &Engine{
		classifier: classifier,
		ui:         ui,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		errOut:     os.Stderr,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.styles == nil {
		e.styles = tui.NewStyles(ui.Color)
	}
	return e
}

// Memory returns a copy of the engine's last-execution memory.
func (e *Engine) Memory() Memory {
	return e.memory
}

// Execute runs an AI action through the confirmation workflow and returns
// the results of every step execution attempt, in order.
func (e *Engine) Execute(ctx context.Context, action *domain.Action) ([]domain.StepResult, error) {
	if action.Kind == domain.ActionAnswerOnly || !action.HasCommands() {
		if action.Summary != "" {
			fmt.Fprintf(e.out, "\n%s\n\n", action.Summary)
		}
		return nil, nil
	}
	return e.executeCommands(ctx, action)
}

func (e *Engine) executeCommands(ctx context.Context, action *domain.Action) ([]domain.StepResult, error) {
	e.displayPlan(action)

	response, err := e.promptConfirmation()
	if err != nil {
		return nil, err
	}

	var steps []domain.Step
	switch response {
	case responseReject:
		fmt.Fprintln(e.out, "Cancelled.")
		return nil, domain.ErrCancelled
	case responseSkip:
		return nil, nil
	case responseEdit:
		steps, err = e.editSteps(action.Steps)
		if err != nil {
			return nil, err
		}
	case responseAccept:
		steps = action.Steps
	}

	var results []domain.StepResult

	for i, step := range steps {
		fmt.Fprintf(e.out, "\n[%d/%d] %s\n", i+1, len(steps), step.Description)

		// Re-analyze the possibly edited command.
		flags := e.classifier.Analyze(step.ShellCommand)

		if flags.IsBlocked {
			fmt.Fprintf(e.errOut, "%s\n",
				e.styles.Warning("Command blocked by safety policy: "+step.ShellCommand))
			e.record(step.ShellCommand, flags, 0, true)
			return results, &domain.BlockedError{Command: step.ShellCommand}
		}

		if step.NeedsConfirmation || e.classifier.NeedsConfirmation(flags) {
			ok, err := e.confirmDangerousStep(step, flags)
			if err != nil {
				return results, err
			}
			if !ok {
				fmt.Fprintln(e.out, "Step skipped.")
				continue
			}
		}

		if flags.RequiresSudo && !e.classifier.Policy().AllowAIToExecuteSudo {
			fmt.Fprintf(e.out, "\n%s\n", e.styles.Warning("sudo command (not auto-executed):"))
			fmt.Fprintf(e.out, "  %s\n", step.ShellCommand)
			fmt.Fprintln(e.out, "\nCopy and run manually, or enable with:")
			fmt.Fprintln(e.out, "  safety.allow_ai_to_execute_sudo: true")
			continue
		}

		result, err := e.executeStep(ctx, step, flags)
		if err != nil {
			return results, err
		}
		results = append(results, result)

		if !result.Success {
			action, err := e.promptFailureAction()
			if err != nil {
				return results, err
			}
			switch action {
			case failureContinue:
				continue
			case failureRetry:
				retried, err := e.executeStep(ctx, step, flags)
				if err != nil {
					return results, err
				}
				results = append(results, retried)
			case failureAbort:
				return results, &domain.StepFailedError{StepID: step.ID, Reason: "User aborted"}
			}
		}
	}

	fmt.Fprintf(e.out, "\n%s\n", e.styles.Success(fmt.Sprintf("Execution complete (%d steps)", len(results))))
	return results, nil
}

// executeStep spawns one command through the platform shell, streaming
// output live while capturing it, and updates the engine memory.
func (e *Engine) executeStep(ctx context.Context, step domain.Step, flags *safety.Flags) (domain.StepResult, error) {
	e.logger.Debug("executing step", "id", step.ID, "command", step.ShellCommand)

	cmd := exec.CommandContext(ctx, "sh", "-c", step.ShellCommand)

	// The working directory is handed to the child directly instead of
	// chdir-ing the wrapper; a bad directory only warns and the command
	// still runs from the inherited cwd.
	if step.WorkingDirectory != "" {
		if info, err := os.Stat(step.WorkingDirectory); err != nil || !info.IsDir() {
			fmt.Fprintf(e.errOut, "%s\n",
				e.styles.Warning("Cannot use working directory "+step.WorkingDirectory+", running from current directory"))
		} else {
			cmd.Dir = step.WorkingDirectory
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = io.MultiWriter(e.out, &stdout)
	cmd.Stderr = io.MultiWriter(e.errOut, &stderr)

	runErr := cmd.Run()

	exitCode := 0
	success := true
	if runErr != nil {
		success = false
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return domain.StepResult{}, &domain.CommandFailedError{Reason: runErr.Error()}
		}
	}

	e.memory = Memory{
		LastCommand:  step.ShellCommand,
		LastExitCode: exitCode,
		LastStderr:   stderr.String(),
		HasRun:       true,
	}

	if !success {
		fmt.Fprintf(e.errOut, "\n%s\n",
			e.styles.Warning(fmt.Sprintf("Command exited with code %d", exitCode)))
	}

	e.record(step.ShellCommand, flags, exitCode, false)

	return domain.StepResult{
		StepID:   step.ID,
		Command:  step.ShellCommand,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Success:  success,
	}, nil
}

func (e *Engine) record(command string, flags *safety.Flags, exitCode int, blocked bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(command, flags.Summary(), exitCode, blocked)
}
