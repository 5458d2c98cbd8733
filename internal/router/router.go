// Package router classifies a completed input line into one of three
// destinations: the underlying shell (untouched passthrough), the AI query
// pipeline, or an internal mode-control command.
//
// Classification is a pure function over the trimmed line. Specific
// multi-word subcommands are matched before the generic "ai <query>" prefix
// so they are not swallowed as vague general queries.
package router

import (
	"regexp"
	"strings"

	"github.com/aretw0/agentsh/pkg/domain"
)

// Kind tags a routing decision.
type Kind int

const (
	// KindShell passes the line through to the wrapped shell unchanged.
	KindShell Kind = iota
	// KindAI routes the line to the AI orchestrator.
	KindAI
	// KindInternal executes a local effect (mode switch, help, history).
	KindInternal
)

// InternalCommand identifies a local effect.
type InternalCommand int

const (
	// InternalHelp shows the AI help text.
	InternalHelp InternalCommand = iota
	// InternalSetMode switches the AI mode (argument in Route.Query).
	InternalSetMode
	// InternalHistory shows the AI interaction history.
	InternalHistory
	// InternalClear resets the AI conversation.
	InternalClear
)

// Route is the ephemeral classification of one input line. It is recomputed
// per line and never persisted.
type Route struct {
	Kind     Kind
	Line     string           // Shell: the original line
	Mode     domain.QueryMode // AI: query mode
	Query    string           // AI: query text; Internal SetMode: mode name
	Internal InternalCommand  // Internal: which effect
}

var (
	aiPrefix   = regexp.MustCompile(`^(@?ai\s+)`)
	aiRun      = regexp.MustCompile(`^@?ai\s+run\s+["']?(.+?)["']?\s*$`)
	aiExplain  = regexp.MustCompile(`^@?ai\s+explain\s+['"]?(.+?)['"]?\s*$`)
	aiDo       = regexp.MustCompile(`^@?ai\s+do\s+["']?(.+?)["']?\s*$`)
	aiFix      = regexp.MustCompile(`^@?ai\s+fix\s*$`)
	aiSysInfo  = regexp.MustCompile(`^@?ai\s+sysinfo\s*$`)
	aiServices = regexp.MustCompile(`^@?ai\s+services\s*$`)
	aiPackages = regexp.MustCompile(`^@?ai\s+packages\s*$`)
	aiMode     = regexp.MustCompile(`^@?ai\s+mode\s+(\w+)\s*$`)
	aiHelp     = regexp.MustCompile(`^@?ai\s+(help|\?)\s*$`)
	aiHistory  = regexp.MustCompile(`^@?ai\s+history\s*$`)
	aiClear    = regexp.MustCompile(`^@?ai\s+clear\s*$`)
)

// Classify routes one input line. Matching order is fixed: help, mode,
// history, clear, run, explain, do, fix, sysinfo, services, packages, then
// the generic ai prefix; anything else goes to the shell.
func Classify(input string) Route {
	trimmed := strings.TrimSpace(input)

	if aiHelp.MatchString(trimmed) {
		return Route{Kind: KindInternal, Internal: InternalHelp}
	}
	if m := aiMode.FindStringSubmatch(trimmed); m != nil {
		return Route{Kind: KindInternal, Internal: InternalSetMode, Query: m[1]}
	}
	if aiHistory.MatchString(trimmed) {
		return Route{Kind: KindInternal, Internal: InternalHistory}
	}
	if aiClear.MatchString(trimmed) {
		return Route{Kind: KindInternal, Internal: InternalClear}
	}
	if m := aiRun.FindStringSubmatch(trimmed); m != nil {
		return Route{Kind: KindAI, Mode: domain.ModeRun, Query: m[1]}
	}
	if m := aiExplain.FindStringSubmatch(trimmed); m != nil {
		return Route{Kind: KindAI, Mode: domain.ModeExplain, Query: m[1]}
	}
	if m := aiDo.FindStringSubmatch(trimmed); m != nil {
		return Route{Kind: KindAI, Mode: domain.ModeDo, Query: m[1]}
	}
	if aiFix.MatchString(trimmed) {
		return Route{Kind: KindAI, Mode: domain.ModeFix}
	}
	if aiSysInfo.MatchString(trimmed) {
		return Route{Kind: KindAI, Mode: domain.ModeSysInfo, Query: "system information"}
	}
	if aiServices.MatchString(trimmed) {
		return Route{Kind: KindAI, Mode: domain.ModeSysInfo, Query: "list running services"}
	}
	if aiPackages.MatchString(trimmed) {
		return Route{Kind: KindAI, Mode: domain.ModeSysInfo, Query: "list installed packages"}
	}
	if loc := aiPrefix.FindStringIndex(trimmed); loc != nil {
		return Route{Kind: KindAI, Mode: domain.ModeGeneral, Query: strings.TrimSpace(trimmed[loc[1]:])}
	}
	// Bare "ai" with nothing after it is still an AI command, carrying an
	// empty general query. The session decides what to do with it.
	if trimmed == "ai" || trimmed == "@ai" {
		return Route{Kind: KindAI, Mode: domain.ModeGeneral}
	}

	return Route{Kind: KindShell, Line: input}
}

// IsAICommand reports whether the line would not be routed to the shell,
// i.e. it starts with the ai/@ai prefix.
func IsAICommand(input string) bool {
	trimmed := strings.TrimSpace(input)
	return aiPrefix.MatchString(trimmed) || trimmed == "ai" || trimmed == "@ai"
}
