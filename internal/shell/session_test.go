package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aretw0/agentsh/internal/ai"
	"github.com/aretw0/agentsh/internal/audit"
	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/history"
	"github.com/aretw0/agentsh/internal/presentation/tui"
	"github.com/aretw0/agentsh/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSession builds a session with buffered output and no PTY. Only
// the intercepted-line handlers are exercised.
func newTestSession(t *testing.T, cfg *config.Config) (*Session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.UI.Color = false
	cfg.History.File = filepath.Join(t.TempDir(), "history")
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.log")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	s := &Session{
		cfg:     cfg,
		mode:    ModeAssist,
		history: history.NewStore(cfg.History, nil),
		audit:   audit.NewLogger(cfg.Audit, nil),
		styles:  tui.NewStyles(false),
		render:  func(md string) (string, error) { return md + "\n", nil },
		out:     out,
		errOut:  errOut,
	}
	return s, out, errOut
}

func TestHandleInternalHelp(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	s.handleInternal(router.Classify("ai help"))
	assert.Contains(t, out.String(), "AI-powered shell assistant")
}

func TestHandleInternalSetMode(t *testing.T) {
	s, out, _ := newTestSession(t, nil)

	s.handleInternal(router.Classify("ai mode off"))
	assert.Equal(t, ModeOff, s.mode)
	assert.Contains(t, out.String(), "AI mode: off")

	s.handleInternal(router.Classify("ai mode assist"))
	assert.Equal(t, ModeAssist, s.mode)

	out.Reset()
	s.handleInternal(router.Classify("ai mode turbo"))
	assert.Equal(t, ModeAssist, s.mode)
	assert.Contains(t, out.String(), "Unknown mode: turbo")
}

func TestHandleInternalHistory(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	s.history.Append("run", "list files", "ls")

	s.handleInternal(router.Classify("ai history"))
	assert.Contains(t, out.String(), "list files")
}

func TestHandleInternalClear(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	s.handleInternal(router.Classify("ai clear"))
	assert.Contains(t, out.String(), "AI conversation cleared.")
}

func TestHandleAIWithoutOrchestrator(t *testing.T) {
	s, _, errOut := newTestSession(t, nil)
	s.handleAI(context.Background(), router.Classify("ai what is my IP"))
	assert.Contains(t, errOut.String(), "AI is not available")
	assert.Contains(t, errOut.String(), "OPENAI_API_KEY")
}

func TestHandleAIEmptyGeneralQueryShowsHelp(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	// An orchestrator exists but must not be called for an empty query.
	s.orchestrator = ai.New(s.cfg, nil)

	s.handleAI(context.Background(), router.Classify("ai"))
	assert.Contains(t, out.String(), "AI-powered shell assistant")
}

func TestHandleAIAnswerOnlyRendered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"kind": "answer_only", "summary": "Your IP is shown by ip addr."}`}},
			},
		})
	}))
	defer srv.Close()

	t.Setenv("TEST_SHELL_AI_KEY", "test-key")
	cfg := config.Default()
	cfg.AI.Endpoint = srv.URL
	cfg.AI.APIKeyEnv = "TEST_SHELL_AI_KEY"

	s, out, errOut := newTestSession(t, cfg)
	s.orchestrator = ai.New(cfg, nil)

	s.handleAI(context.Background(), router.Classify("ai what is my IP"))

	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "Thinking...")
	assert.Contains(t, out.String(), "Your IP is shown by ip addr.")

	// Recorded in history.
	entries := s.history.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "what is my IP", entries[0].Query)
}

func TestHandleAIErrorReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	t.Setenv("TEST_SHELL_AI_KEY", "test-key")
	cfg := config.Default()
	cfg.AI.Endpoint = srv.URL
	cfg.AI.APIKeyEnv = "TEST_SHELL_AI_KEY"

	s, _, errOut := newTestSession(t, cfg)
	s.orchestrator = ai.New(cfg, nil)

	s.handleAI(context.Background(), router.Classify("ai break things"))
	assert.Contains(t, errOut.String(), "AI error:")
}

func TestLocalReportSelection(t *testing.T) {
	s, _, _ := newTestSession(t, nil)

	assert.Contains(t, s.localReport("system information"), "=== System Information ===")
	assert.Contains(t, s.localReport("list installed packages"), "=== Installed Packages ===")
	assert.Contains(t, s.localReport("list running services"), "=== Running Services ===")
}

func TestShellPathFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Mode.Shell = "/bin/zsh"
	s := &Session{cfg: cfg}
	assert.Equal(t, "/bin/zsh", s.shellPath())

	cfg.Mode.Shell = ""
	t.Setenv("SHELL", "/bin/bash")
	assert.Equal(t, "/bin/bash", s.shellPath())

	t.Setenv("SHELL", "")
	assert.Equal(t, "/bin/sh", s.shellPath())
}
