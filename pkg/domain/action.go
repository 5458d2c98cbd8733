package domain

// ActionKind classifies the execution intent of an AI response.
type ActionKind string

const (
	// ActionAnswerOnly is a pure text answer, no commands.
	ActionAnswerOnly ActionKind = "answer_only"

	// ActionCommandSequence is one or more commands to execute.
	ActionCommandSequence ActionKind = "command_sequence"

	// ActionPlanAndCommands is a multi-step plan with commands.
	ActionPlanAndCommands ActionKind = "plan_and_commands"
)

// Step is one atomic shell command proposed as part of an AI action.
// Steps are immutable once issued to the engine; the user may edit a copy
// before execution.
type Step struct {
	ID                string `json:"id"`
	Description       string `json:"description"`
	ShellCommand      string `json:"shell_command"`
	NeedsConfirmation bool   `json:"needs_confirmation,omitempty"`
	IsDestructive     bool   `json:"is_destructive,omitempty"`
	RequiresSudo      bool   `json:"requires_sudo,omitempty"`
	WorkingDirectory  string `json:"working_directory,omitempty"`
}

// Action is an AI response parsed into an execution intent.
// By convention an answer-only action carries no steps; the engine does not
// enforce this and treats an empty step list the same way.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Summary string     `json:"summary,omitempty"`
	Steps   []Step     `json:"steps,omitempty"`
}

// AnswerOnly builds a pure text action.
func AnswerOnly(text string) *Action {
	return &Action{Kind: ActionAnswerOnly, Summary: text}
}

// HasCommands reports whether this action carries steps to execute.
func (a *Action) HasCommands() bool {
	return len(a.Steps) > 0
}

// StepResult is the captured outcome of one step execution. Multiple
// results may share a StepID when the user chose to retry.
type StepResult struct {
	StepID   string `json:"step_id"`
	Command  string `json:"command"`
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Success  bool   `json:"success"`
}

// QueryMode determines how the orchestrator frames a user query.
type QueryMode string

const (
	// ModeGeneral is a plain question (ai <question>).
	ModeGeneral QueryMode = "general"
	// ModeRun asks for commands to accomplish a task (ai run "task").
	ModeRun QueryMode = "run"
	// ModeExplain asks for an explanation of a command (ai explain 'cmd').
	ModeExplain QueryMode = "explain"
	// ModeFix asks to diagnose the last failed command (ai fix).
	ModeFix QueryMode = "fix"
	// ModeDo asks for a multi-step autonomous plan (ai do "task").
	ModeDo QueryMode = "do"
	// ModeSysInfo asks about local system state (ai sysinfo/services/packages).
	ModeSysInfo QueryMode = "sysinfo"
)
