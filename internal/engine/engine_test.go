package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/safety"
	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine builds an engine reading prompt responses from input and
// writing everything to buffers.
func newTestEngine(t *testing.T, input string) (*Engine, *bytes.Buffer) {
	t.Helper()
	cfg := config.Default()
	cfg.UI.Color = false
	classifier := safety.NewClassifier(cfg.Safety, nil)
	out := &bytes.Buffer{}
	e := New(classifier, cfg.UI, WithIO(strings.NewReader(input), out, out))
	return e, out
}

func step(id, command string) domain.Step {
	return domain.Step{ID: id, Description: command, ShellCommand: command}
}

func TestAnswerOnlySpawnsNothing(t *testing.T) {
	e, out := newTestEngine(t, "")

	results, err := e.Execute(context.Background(), domain.AnswerOnly("The answer is 42."))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, out.String(), "The answer is 42.")
	assert.False(t, e.Memory().HasRun)
}

func TestEmptyStepListSpawnsNothing(t *testing.T) {
	e, _ := newTestEngine(t, "")

	action := &domain.Action{Kind: domain.ActionCommandSequence, Summary: "nothing to do"}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAcceptRunsSingleSafeStep(t *testing.T) {
	e, out := newTestEngine(t, "y\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "s1", results[0].StepID)
	assert.True(t, results[0].Success)
	assert.Equal(t, 0, results[0].ExitCode)
	assert.Equal(t, "ok\n", results[0].Stdout)
	assert.Contains(t, out.String(), "Execution complete (1 steps)")
}

func TestRejectYieldsCancelled(t *testing.T) {
	e, _ := newTestEngine(t, "n\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	results, err := e.Execute(context.Background(), action)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, results)
}

func TestSkipReturnsEmptyWithoutFailure(t *testing.T) {
	e, _ := newTestEngine(t, "s\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInvalidConfirmationReprompts(t *testing.T) {
	e, out := newTestEngine(t, "maybe\nwhat\ny\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Contains(t, out.String(), "Invalid response")
}

func TestRepromptLoopIsBounded(t *testing.T) {
	e, _ := newTestEngine(t, strings.Repeat("bogus\n", maxPromptRetries+5))

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	_, err := e.Execute(context.Background(), action)
	var cmdErr *domain.CommandFailedError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestRetryAppendsSecondResultWithSameStepID(t *testing.T) {
	e, _ := newTestEngine(t, "y\nr\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "exit 3")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "s1", results[0].StepID)
	assert.Equal(t, "s1", results[1].StepID)
	assert.False(t, results[0].Success)
	assert.Equal(t, 3, results[0].ExitCode)
}

func TestAbortRaisesStepFailed(t *testing.T) {
	e, _ := newTestEngine(t, "y\na\n")

	action := &domain.Action{
		Kind: domain.ActionCommandSequence,
		Steps: []domain.Step{
			step("s1", "exit 1"),
			step("s2", "echo never"),
		},
	}
	results, err := e.Execute(context.Background(), action)

	var failed *domain.StepFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "s1", failed.StepID)
	// The failed attempt is recorded; the remaining step never ran.
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
}

func TestContinuePastFailure(t *testing.T) {
	e, _ := newTestEngine(t, "y\nc\n")

	action := &domain.Action{
		Kind: domain.ActionCommandSequence,
		Steps: []domain.Step{
			step("s1", "exit 1"),
			step("s2", "echo recovered"),
		},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
}

func TestBlockedStepAbortsAction(t *testing.T) {
	e, _ := newTestEngine(t, "y\n")

	action := &domain.Action{
		Kind: domain.ActionCommandSequence,
		Steps: []domain.Step{
			step("s1", "rm -rf /"),
			step("s2", "echo never"),
		},
	}
	results, err := e.Execute(context.Background(), action)

	var blocked *domain.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "rm -rf /", blocked.Command)
	assert.Empty(t, results)
}

func TestDangerousStepSkippedWithoutLiteralYes(t *testing.T) {
	// "truncate" trips the destructive classifier; an empty response at the
	// warning prompt skips only this step.
	target := filepath.Join(t.TempDir(), "scratch")
	e, out := newTestEngine(t, "y\n\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "truncate -s 0 "+target)},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, out.String(), "Step skipped.")
	assert.Contains(t, out.String(), "safety concerns")
}

func TestDangerousStepRunsAfterLiteralYes(t *testing.T) {
	target := filepath.Join(t.TempDir(), "scratch")
	e, _ := newTestEngine(t, "y\nYES\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "truncate -s 0 "+target)},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestSudoPrintedNotExecuted(t *testing.T) {
	// Default policy forbids AI-initiated sudo; the command is printed for
	// manual use and the action continues without failing.
	e, out := newTestEngine(t, "y\nyes\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "sudo echo hi")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Contains(t, out.String(), "sudo command (not auto-executed)")
	assert.Contains(t, out.String(), "sudo echo hi")
}

func TestEditReplacesCommand(t *testing.T) {
	e, _ := newTestEngine(t, "e\ne\necho edited\ny\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo original")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "echo edited", results[0].Command)
	assert.Equal(t, "edited\n", results[0].Stdout)
	// The original action is untouched.
	assert.Equal(t, "echo original", action.Steps[0].ShellCommand)
}

func TestEditEmptyReplacementKeepsOriginal(t *testing.T) {
	e, _ := newTestEngine(t, "e\ne\n\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo kept")},
	}
	results, err := e.Execute(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "echo kept", results[0].Command)
}

func TestEditSkipAllYieldsCancelled(t *testing.T) {
	e, _ := newTestEngine(t, "e\ns\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo ok")},
	}
	_, err := e.Execute(context.Background(), action)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestEditQuitDiscardsEdits(t *testing.T) {
	e, _ := newTestEngine(t, "e\n\nq\n")

	action := &domain.Action{
		Kind: domain.ActionCommandSequence,
		Steps: []domain.Step{
			step("s1", "echo one"),
			step("s2", "echo two"),
		},
	}
	results, err := e.Execute(context.Background(), action)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, results)
}

func TestMemoryUpdatedAfterExecution(t *testing.T) {
	e, _ := newTestEngine(t, "y\nc\n")

	action := &domain.Action{
		Kind:  domain.ActionCommandSequence,
		Steps: []domain.Step{step("s1", "echo oops >&2; exit 7")},
	}
	_, err := e.Execute(context.Background(), action)
	require.NoError(t, err)

	mem := e.Memory()
	assert.True(t, mem.HasRun)
	assert.Equal(t, "echo oops >&2; exit 7", mem.LastCommand)
	assert.Equal(t, 7, mem.LastExitCode)
	assert.Equal(t, "oops\n", mem.LastStderr)
}

type captureRecorder struct {
	commands []string
	blocked  []bool
}

func (r *captureRecorder) Record(command string, flags []string, exitCode int, blocked bool) {
	r.commands = append(r.commands, command)
	r.blocked = append(r.blocked, blocked)
}

func TestRecorderSeesExecutionsAndBlocks(t *testing.T) {
	rec := &captureRecorder{}
	cfg := config.Default()
	cfg.UI.Color = false
	classifier := safety.NewClassifier(cfg.Safety, nil)
	out := &bytes.Buffer{}
	e := New(classifier, cfg.UI,
		WithIO(strings.NewReader("y\n"), out, out),
		WithRecorder(rec),
	)

	action := &domain.Action{
		Kind: domain.ActionCommandSequence,
		Steps: []domain.Step{
			step("s1", "echo ok"),
			step("s2", "rm -rf /"),
		},
	}
	_, err := e.Execute(context.Background(), action)
	require.Error(t, err)

	require.Len(t, rec.commands, 2)
	assert.Equal(t, []bool{false, true}, rec.blocked)
}

func TestPlanDisplayShowsTags(t *testing.T) {
	e, out := newTestEngine(t, "n\n")

	action := &domain.Action{
		Kind:    domain.ActionPlanAndCommands,
		Summary: "clean up",
		Steps: []domain.Step{
			{ID: "s1", Description: "remove temp files", ShellCommand: "rm -rf /tmp/scratch"},
		},
	}
	_, err := e.Execute(context.Background(), action)
	assert.True(t, errors.Is(err, domain.ErrCancelled))

	s := out.String()
	assert.Contains(t, s, "Plan: clean up")
	assert.Contains(t, s, "#1: rm -rf /tmp/scratch")
	assert.Contains(t, s, "[DESTRUCTIVE]")
	assert.Contains(t, s, "-> remove temp files")
}
