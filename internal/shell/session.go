// Package shell runs the interactive session: it spawns the user's shell
// in a PTY, proxies bytes between the real terminal and the child, and
// intercepts completed AI command lines before the child interprets them.
//
// Interception works on a shadow copy of the typed line. Ordinary input
// streams through byte for byte; when a line terminator completes an AI
// command, the terminator is replaced with a kill-line control byte so
// the child's pending input is discarded, and the line is handled locally.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aretw0/agentsh/internal/ai"
	"github.com/aretw0/agentsh/internal/audit"
	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/engine"
	"github.com/aretw0/agentsh/internal/history"
	"github.com/aretw0/agentsh/internal/logging"
	"github.com/aretw0/agentsh/internal/presentation/tui"
	"github.com/aretw0/agentsh/internal/router"
	"github.com/aretw0/agentsh/internal/safety"
	"github.com/aretw0/agentsh/internal/sysinfo"
	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/creack/pty"
	"golang.org/x/term"
)

// AiMode controls whether completed lines are classified at all.
type AiMode int

const (
	// ModeOff passes every line to the shell untouched.
	ModeOff AiMode = iota
	// ModeAssist intercepts AI command lines.
	ModeAssist
)

// Session is one wrapped interactive shell.
type Session struct {
	cfg     *config.Config
	version string
	logger  *slog.Logger

	mode         AiMode
	orchestrator *ai.Orchestrator
	engine       *engine.Engine
	history      *history.Store
	audit        *audit.Logger
	styles       *tui.Styles
	render       func(string) (string, error)
	sysCtx       sysinfo.SystemContext

	out    io.Writer
	errOut io.Writer

	ptmx     *os.File
	acc      lineAccumulator
	rawState *term.State
	running  atomic.Bool
}

// NewSession wires the session from the merged configuration. The AI
// orchestrator is only created when an API key is present; without one
// the session still works as a plain shell wrapper.
func NewSession(cfg *config.Config, logger *slog.Logger, version string) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}

	auditLog := audit.NewLogger(cfg.Audit, logger)
	classifier := safety.NewClassifier(cfg.Safety, logger)

	s := &Session{
		cfg:     cfg,
		version: version,
		logger:  logger,
		engine:  engine.New(classifier, cfg.UI, engine.WithRecorder(auditLog), engine.WithLogger(logger)),
		history: history.NewStore(cfg.History, logger),
		audit:   auditLog,
		styles:  tui.NewStyles(cfg.UI.Color),
		render:  tui.NewRenderer(),
		sysCtx:  sysinfo.Collect(cfg.Context, logger),
		out:     os.Stdout,
		errOut:  os.Stderr,
	}

	if cfg.Mode.Default == "off" {
		s.mode = ModeOff
	} else {
		s.mode = ModeAssist
	}

	if cfg.APIKey() != "" {
		s.orchestrator = ai.New(cfg, logger)
	} else {
		logger.Warn("no API key found, AI features disabled", "env", cfg.AI.APIKeyEnv)
	}

	return s
}

// Run spawns the shell and proxies until it exits. A nonzero shell exit
// surfaces as a ShellExitError so the wrapper can mirror the code.
func (s *Session) Run(ctx context.Context) error {
	defer s.audit.Close()

	shellPath := s.shellPath()
	s.logger.Info("spawning shell", "path", shellPath, "args", s.cfg.Mode.ShellArgs)

	cmd := exec.Command(shellPath, s.cfg.Mode.ShellArgs...)
	cmd.Env = buildEnv(s.version)

	ws := &pty.Winsize{Rows: 24, Cols: 80}
	if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
		ws.Cols, ws.Rows = uint16(w), uint16(h)
	}

	ptmx, err := pty.StartWithSize(cmd, ws)
	if err != nil {
		return fmt.Errorf("failed to spawn shell: %w", err)
	}
	defer ptmx.Close()
	s.ptmx = ptmx
	s.running.Store(true)

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			if w, h, err := term.GetSize(int(os.Stdin.Fd())); err == nil {
				if err := s.Resize(uint16(h), uint16(w)); err != nil {
					s.logger.Warn("failed to resize pty", "err", err)
				}
			}
		}
	}()
	winch <- syscall.SIGWINCH // initial size sync

	fd := int(os.Stdin.Fd())
	if state, err := term.MakeRaw(fd); err == nil {
		s.rawState = state
		defer term.Restore(fd, state)
	} else {
		s.logger.Warn("failed to enter raw mode", "err", err)
	}

	// Child output streams to the terminal until the shell exits.
	outputDone := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, ptmx)
		close(outputDone)
	}()

	go s.inputLoop(ctx)

	<-outputDone
	s.running.Store(false)

	if s.rawState != nil {
		term.Restore(fd, s.rawState)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Warn("shell exited", "code", exitErr.ExitCode())
			return &domain.ShellExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to wait for shell: %w", err)
	}

	s.logger.Info("shell exited cleanly")
	return nil
}

// Resize propagates a new terminal size to the child PTY.
func (s *Session) Resize(rows, cols uint16) error {
	return pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

func (s *Session) shellPath() string {
	if s.cfg.Mode.Shell != "" {
		return s.cfg.Mode.Shell
	}
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// inputLoop reads raw terminal input and forwards it through the line
// classifier until the session stops.
func (s *Session) inputLoop(ctx context.Context) {
	buf := make([]byte, 1024)
	for s.running.Load() {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if !s.processInput(ctx, buf[:n]) {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// processInput forwards one input chunk to the child, intercepting line
// terminators that complete an AI command. Returns false when the child
// side is gone.
func (s *Session) processInput(ctx context.Context, data []byte) bool {
	out := make([]byte, 0, len(data))

	for _, b := range data {
		line, complete := s.acc.feed(b)
		if !complete {
			out = append(out, b)
			continue
		}

		if s.mode == ModeAssist && router.IsAICommand(line) {
			// Erase the child's pending input instead of executing it.
			out = append(out, byteKillLine)
			if !s.flush(out) {
				return false
			}
			out = out[:0]
			s.handleIntercepted(ctx, line)
			continue
		}

		out = append(out, b)
	}

	return s.flush(out)
}

func (s *Session) flush(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return false
	}
	return true
}

// handleIntercepted leaves raw mode for the line-oriented AI interaction
// and restores it afterwards.
func (s *Session) handleIntercepted(ctx context.Context, line string) {
	fd := int(os.Stdin.Fd())
	if s.rawState != nil {
		term.Restore(fd, s.rawState)
		defer term.MakeRaw(fd)
	}
	fmt.Fprintln(s.out)

	route := router.Classify(line)
	switch route.Kind {
	case router.KindInternal:
		s.handleInternal(route)
	case router.KindAI:
		s.handleAI(ctx, route)
	}
}

func (s *Session) handleInternal(route router.Route) {
	switch route.Internal {
	case router.InternalHelp:
		fmt.Fprint(s.out, router.HelpText)
	case router.InternalSetMode:
		switch route.Query {
		case "off":
			s.mode = ModeOff
			fmt.Fprintln(s.out, "AI mode: off")
		case "assist":
			s.mode = ModeAssist
			fmt.Fprintln(s.out, "AI mode: assist")
		default:
			fmt.Fprintf(s.out, "Unknown mode: %s. Use 'off' or 'assist'.\n", route.Query)
		}
	case router.InternalHistory:
		fmt.Fprint(s.out, s.history.Format(20))
	case router.InternalClear:
		if s.orchestrator != nil {
			s.orchestrator.ClearHistory()
		}
		fmt.Fprintln(s.out, "AI conversation cleared.")
	}
}

func (s *Session) handleAI(ctx context.Context, route router.Route) {
	// System state queries are answered locally; no model round trip.
	if route.Mode == domain.ModeSysInfo {
		fmt.Fprintln(s.out, s.localReport(route.Query))
		return
	}

	if s.orchestrator == nil {
		fmt.Fprintf(s.errOut, "AI is not available. Set %s environment variable.\n", s.cfg.AI.APIKeyEnv)
		return
	}

	if route.Mode == domain.ModeGeneral && strings.TrimSpace(route.Query) == "" {
		fmt.Fprint(s.out, router.HelpText)
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	s.orchestrator.UpdateContext(ai.Context{
		OS:   s.sysCtx.OSString(),
		CWD:  cwd,
		User: s.sysCtx.User,
	})
	if route.Mode == domain.ModeFix {
		mem := s.engine.Memory()
		if mem.HasRun {
			s.orchestrator.SetLastCommand(mem.LastCommand, mem.LastExitCode, mem.LastStderr)
		}
	}

	fmt.Fprintln(s.out, s.styles.Muted("Thinking..."))
	start := time.Now()

	action, err := s.orchestrator.Query(ctx, route.Query, route.Mode)
	if err != nil {
		s.audit.LogError(route.Query, err)
		fmt.Fprintf(s.errOut, "AI error: %v\n", err)
		return
	}
	s.audit.LogQuery(route.Query, action)

	if action.Kind == domain.ActionAnswerOnly || !action.HasCommands() {
		s.printAnswer(action.Summary)
		s.history.Append(string(route.Mode), route.Query, action.Summary)
		return
	}

	results, err := s.engine.Execute(ctx, action)
	if err != nil && !errors.Is(err, domain.ErrCancelled) {
		fmt.Fprintf(s.errOut, "Execution error: %v\n", err)
	}
	s.audit.LogExecution(route.Query, results, time.Since(start))
	s.history.Append(string(route.Mode), route.Query, action.Summary)
}

// printAnswer renders markdown answers for the terminal, falling back to
// plain text if rendering fails.
func (s *Session) printAnswer(text string) {
	if text == "" {
		return
	}
	if rendered, err := s.render(text); err == nil {
		fmt.Fprint(s.out, rendered)
	} else {
		fmt.Fprintln(s.out, text)
	}
}

func (s *Session) localReport(query string) string {
	switch query {
	case "list running services":
		return sysinfo.ServicesReport()
	case "list installed packages":
		return sysinfo.PackagesReport()
	default:
		return sysinfo.SystemReport()
	}
}
