// Package ai talks to the LLM backend: it frames user queries with local
// context, sends them over the OpenAI chat completions wire format, and
// parses responses into executable actions.
//
// The orchestrator never executes anything itself. Its output is a
// domain.Action handed to the execution engine.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/logging"
	"github.com/aretw0/agentsh/pkg/domain"
)

// historyLimit bounds how many prior messages accompany each query.
const historyLimit = 10

// UnavailableError means the backend cannot be reached at all, typically
// a missing API key.
type UnavailableError struct {
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("AI unavailable: %s", e.Reason)
}

// APIError is a non-2xx response from the LLM API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AI API error (status %d): %s", e.Status, e.Message)
}

// Message is one turn in the chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the local state framed into each query.
type Context struct {
	OS   string
	CWD  string
	User string

	// Last executed command, fed back on fix queries.
	LastCommand  string
	LastExitCode int
	LastStderr   string
	HasFailure   bool
}

// Orchestrator owns the conversation with the LLM backend.
type Orchestrator struct {
	cfg    *config.Config
	client *http.Client
	logger *slog.Logger

	context Context
	history []Message
}

// New creates an orchestrator from the merged configuration.
func New(cfg *config.Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.AI.Timeout) * time.Second,
		},
		logger: logger,
	}
}

// UpdateContext replaces the local context attached to queries.
func (o *Orchestrator) UpdateContext(ctx Context) {
	o.context = ctx
}

// SetLastCommand records the most recent execution outcome for fix queries.
func (o *Orchestrator) SetLastCommand(cmd string, exitCode int, stderr string) {
	o.context.LastCommand = cmd
	o.context.LastExitCode = exitCode
	o.context.LastStderr = stderr
	o.context.HasFailure = true
}

// ClearHistory drops the conversation so the next query starts fresh.
func (o *Orchestrator) ClearHistory() {
	o.history = nil
}

// Query sends one user query and returns the parsed action. The
// conversation history grows by the query and its raw response.
func (o *Orchestrator) Query(ctx context.Context, input string, mode domain.QueryMode) (*domain.Action, error) {
	apiKey := o.cfg.APIKey()
	if apiKey == "" {
		return nil, &UnavailableError{
			Reason: fmt.Sprintf("API key not found in %s", o.cfg.AI.APIKeyEnv),
		}
	}

	userMessage := buildUserMessage(input, o.context, mode)

	messages := []Message{{Role: "system", Content: buildSystemPrompt(mode)}}
	start := 0
	if len(o.history) > historyLimit {
		start = len(o.history) - historyLimit
	}
	messages = append(messages, o.history[start:]...)
	messages = append(messages, Message{Role: "user", Content: userMessage})

	o.logger.Debug("sending AI request", "messages", len(messages), "mode", string(mode))

	response, err := o.send(ctx, apiKey, messages)
	if err != nil {
		return nil, err
	}

	o.history = append(o.history,
		Message{Role: "user", Content: userMessage},
		Message{Role: "assistant", Content: response},
	)

	return Parse(response, o.logger), nil
}

// send posts one chat completion request and extracts the assistant text.
func (o *Orchestrator) send(ctx context.Context, apiKey string, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       o.cfg.AI.Model,
		"messages":    messages,
		"max_tokens":  o.cfg.AI.MaxTokens,
		"temperature": o.cfg.AI.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.AI.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &UnavailableError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errText, _ := io.ReadAll(resp.Body)
		return "", &APIError{Status: resp.StatusCode, Message: string(errText)}
	}

	var respData struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respData.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return respData.Choices[0].Message.Content, nil
}
