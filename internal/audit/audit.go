// Package audit writes a JSON-lines trail of every AI interaction: the
// query, the proposed action, what actually ran, and what was blocked.
// Secrets are redacted before anything touches disk.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/logging"
	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/google/uuid"
)

const maxPreview = 500

var secretPatterns = []*regexp.Regexp{
	// key=value style assignments
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd|pwd)\s*[=:]\s*['"]?([^'"\s]+)['"]?`),
	// bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]+`),
	// AWS access keys
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	// PEM private key headers
	regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+)?PRIVATE\s+KEY-----`),
	// long opaque strings that are probably credentials
	regexp.MustCompile(`[a-zA-Z0-9_-]{32,}`),
}

// Event classifies a log entry.
type Event string

const (
	EventQuery   Event = "query"
	EventExecute Event = "execute"
	EventBlocked Event = "blocked"
	EventError   Event = "error"
)

// ExecutedCommand records one command attempt inside an entry.
type ExecutedCommand struct {
	Command       string `json:"command"`
	ExitCode      int    `json:"exit_code"`
	StdoutPreview string `json:"stdout_preview,omitempty"`
	StderrPreview string `json:"stderr_preview,omitempty"`
}

// Entry is one audit record. Entries are written as single JSON lines.
type Entry struct {
	SessionID  string            `json:"session_id"`
	Timestamp  time.Time         `json:"timestamp"`
	Event      Event             `json:"event"`
	User       string            `json:"user"`
	CWD        string            `json:"cwd"`
	Request    string            `json:"request"`
	Action     *domain.Action    `json:"ai_action,omitempty"`
	Executed   []ExecutedCommand `json:"executed_commands,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
}

// Logger appends audit entries to the configured file, rotating it when
// it outgrows the size limit. All methods are safe for concurrent use and
// degrade to no-ops when the file cannot be opened.
type Logger struct {
	cfg       config.AuditConfig
	sessionID string
	logger    *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewLogger opens the audit log. Open failures are logged and leave the
// logger disabled rather than failing the session.
func NewLogger(cfg config.AuditConfig, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = logging.NewNop()
	}
	l := &Logger{
		cfg:       cfg,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
	if cfg.Enabled {
		l.file = openLogFile(cfg.Path, logger)
	}
	return l
}

func openLogFile(path string, logger *slog.Logger) *os.File {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Error("failed to create audit log directory", "err", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger.Error("failed to open audit log", "path", path, "err", err)
		return nil
	}
	return f
}

// SessionID is the identifier stamped on every entry of this session.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Close releases the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// LogQuery records an AI query and its proposed action.
func (l *Logger) LogQuery(request string, action *domain.Action) {
	l.write(Entry{
		Event:   EventQuery,
		Request: l.redact(request),
		Action:  l.redactAction(action),
	})
}

// LogExecution records the results of a supervised execution.
func (l *Logger) LogExecution(request string, results []domain.StepResult, duration time.Duration) {
	executed := make([]ExecutedCommand, 0, len(results))
	for _, r := range results {
		ec := ExecutedCommand{
			Command:       l.redact(r.Command),
			ExitCode:      r.ExitCode,
			StdoutPreview: truncatePreview(l.redact(r.Stdout)),
		}
		if r.Stderr != "" {
			ec.StderrPreview = truncatePreview(l.redact(r.Stderr))
		}
		executed = append(executed, ec)
	}
	l.write(Entry{
		Event:      EventExecute,
		Request:    l.redact(request),
		Executed:   executed,
		DurationMS: duration.Milliseconds(),
	})
}

// LogBlocked records a command stopped by the safety policy.
func (l *Logger) LogBlocked(request, command, reason string) {
	l.write(Entry{
		Event:   EventBlocked,
		Request: l.redact(request),
		Executed: []ExecutedCommand{{
			Command:       l.redact(command),
			ExitCode:      -1,
			StderrPreview: reason,
		}},
	})
}

// LogError records a failed AI interaction.
func (l *Logger) LogError(request string, err error) {
	l.write(Entry{
		Event:   EventError,
		Request: l.redact(request),
	})
}

// Record implements the engine's per-attempt recorder hook.
func (l *Logger) Record(command string, flags []string, exitCode int, blocked bool) {
	if blocked {
		l.LogBlocked("", command, "blocked by safety policy")
		return
	}
	l.write(Entry{
		Event: EventExecute,
		Executed: []ExecutedCommand{{
			Command:  l.redact(command),
			ExitCode: exitCode,
		}},
	})
}

func (l *Logger) write(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}

	entry.SessionID = l.sessionID
	entry.Timestamp = time.Now().UTC()
	entry.User = os.Getenv("USER")
	if entry.User == "" {
		entry.User = "unknown"
	}
	if cwd, err := os.Getwd(); err == nil {
		entry.CWD = cwd
	} else {
		entry.CWD = "."
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to serialize audit entry", "err", err)
		return
	}
	if _, err := fmt.Fprintf(l.file, "%s\n", data); err != nil {
		l.logger.Error("failed to write audit entry", "err", err)
		return
	}

	l.maybeRotate()
}

// maybeRotate rotates the log when it exceeds the size limit, keeping
// Retention numbered backups. Caller holds the mutex.
func (l *Logger) maybeRotate() {
	info, err := l.file.Stat()
	if err != nil || info.Size() <= l.cfg.MaxSize {
		return
	}

	l.logger.Debug("rotating audit log", "path", l.cfg.Path)
	l.file.Close()
	l.file = nil

	for i := l.cfg.Retention - 1; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", l.cfg.Path, i)
		os.Rename(old, fmt.Sprintf("%s.%d", l.cfg.Path, i+1))
	}
	os.Rename(l.cfg.Path, l.cfg.Path+".1")

	l.file = openLogFile(l.cfg.Path, l.logger)
}

func (l *Logger) redact(text string) string {
	if !l.cfg.RedactSecrets {
		return text
	}
	return Redact(text)
}

// redactAction returns a redacted copy, leaving the original untouched.
func (l *Logger) redactAction(action *domain.Action) *domain.Action {
	if action == nil || !l.cfg.RedactSecrets {
		return action
	}
	redacted := *action
	redacted.Summary = Redact(redacted.Summary)
	redacted.Steps = make([]domain.Step, len(action.Steps))
	for i, step := range action.Steps {
		step.ShellCommand = Redact(step.ShellCommand)
		step.Description = Redact(step.Description)
		redacted.Steps[i] = step
	}
	return &redacted
}

// Redact replaces credential-looking substrings with a placeholder.
func Redact(text string) string {
	for _, pattern := range secretPatterns {
		text = pattern.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

func truncatePreview(text string) string {
	if len(text) > maxPreview {
		return text[:maxPreview] + "...[truncated]"
	}
	return text
}
