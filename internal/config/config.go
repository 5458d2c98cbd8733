// Package config loads and merges layered agentsh configuration.
//
// Sources are applied in order, later entries winning:
//  1. compiled defaults
//  2. system config (/etc/agentsh/config.yaml)
//  3. user config (~/.agentsh/config.yaml)
//  4. file passed via --config
//  5. project config (.agentshrc in the starting directory)
//  6. environment variables (AGENTSH_MODE, AGENTSH_SHELL, AGENTSH_LOG)
//  7. --set key=value overrides
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the merged application configuration.
type Config struct {
	AI      AIConfig      `yaml:"ai" mapstructure:"ai"`
	Mode    ModeConfig    `yaml:"mode" mapstructure:"mode"`
	Safety  SafetyPolicy  `yaml:"safety" mapstructure:"safety"`
	UI      UIPolicy      `yaml:"ui" mapstructure:"ui"`
	Context ContextConfig `yaml:"context" mapstructure:"context"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Audit   AuditConfig   `yaml:"audit" mapstructure:"audit"`
}

// AIConfig configures the LLM backend.
type AIConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	APIKeyEnv   string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ModeConfig selects the wrapped shell and the default AI mode.
type ModeConfig struct {
	Default   string   `yaml:"default" mapstructure:"default"` // off, assist
	Shell     string   `yaml:"shell" mapstructure:"shell"`
	ShellArgs []string `yaml:"shell_args" mapstructure:"shell_args"`
}

// SafetyPolicy governs which AI-proposed commands may execute and which
// require confirmation. The zero value is NOT a usable policy; use Default.
type SafetyPolicy struct {
	RequireConfirmationForDestructive bool     `yaml:"require_confirmation_for_destructive" mapstructure:"require_confirmation_for_destructive"`
	RequireConfirmationForSudo        bool     `yaml:"require_confirmation_for_sudo" mapstructure:"require_confirmation_for_sudo"`
	AllowAIToExecuteSudo              bool     `yaml:"allow_ai_to_execute_sudo" mapstructure:"allow_ai_to_execute_sudo"`
	BlockedPatterns                   []string `yaml:"blocked_patterns" mapstructure:"blocked_patterns"`
	ProtectedPaths                    []string `yaml:"protected_paths" mapstructure:"protected_paths"`
}

// UIPolicy controls plan presentation.
type UIPolicy struct {
	ShowPlanBeforeExecution bool `yaml:"show_plan_before_execution" mapstructure:"show_plan_before_execution"`
	ShowStepNumbers         bool `yaml:"show_step_numbers" mapstructure:"show_step_numbers"`
	Color                   bool `yaml:"color" mapstructure:"color"`
}

// ContextConfig controls what local context is attached to AI queries.
type ContextConfig struct {
	IncludeFiles    []string `yaml:"include_files" mapstructure:"include_files"`
	ExcludePatterns []string `yaml:"exclude_patterns" mapstructure:"exclude_patterns"`
	MaxFileSize     int64    `yaml:"max_file_size" mapstructure:"max_file_size"`
	MaxContextSize  int64    `yaml:"max_context_size" mapstructure:"max_context_size"`
}

// HistoryConfig controls the AI interaction history file.
type HistoryConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	File           string   `yaml:"file" mapstructure:"file"`
	MaxEntries     int      `yaml:"max_entries" mapstructure:"max_entries"`
	IgnorePatterns []string `yaml:"ignore_patterns" mapstructure:"ignore_patterns"`
}

// AuditConfig controls the AI-generated command audit log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Path          string `yaml:"path" mapstructure:"path"`
	MaxSize       int64  `yaml:"max_size" mapstructure:"max_size"`
	Retention     int    `yaml:"retention" mapstructure:"retention"`
	RedactSecrets bool   `yaml:"redact_secrets" mapstructure:"redact_secrets"`
}

// Default returns the compiled defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		AI: AIConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Endpoint:    "https://api.openai.com/v1/chat/completions",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   2048,
			Timeout:     30,
			Temperature: 0.7,
		},
		Mode: ModeConfig{
			Default:   "assist",
			ShellArgs: []string{"-l"},
		},
		Safety: SafetyPolicy{
			RequireConfirmationForDestructive: true,
			RequireConfirmationForSudo:        true,
			AllowAIToExecuteSudo:              false,
			BlockedPatterns: []string{
				`rm\s+-rf\s+/\s*$`,
				`rm\s+-rf\s+/\*`,
				`dd\s+.*of=/dev/sd[a-z]\s*$`,
				`mkfs\.\S+\s+/dev/sd[a-z]\s*$`,
				`:\(\)\{\s*:\|:\s*&\s*\}\s*;`, // fork bomb
			},
			ProtectedPaths: []string{
				"/etc/passwd",
				"/etc/shadow",
				"/etc/sudoers",
				"~/.ssh/authorized_keys",
			},
		},
		UI: UIPolicy{
			ShowPlanBeforeExecution: true,
			ShowStepNumbers:         true,
			Color:                   true,
		},
		Context: ContextConfig{
			IncludeFiles: []string{
				"README.md", "Makefile", "docker-compose.yml",
				"package.json", "go.mod",
			},
			ExcludePatterns: []string{"*.log", "node_modules/*", ".git/*"},
			MaxFileSize:     100 * 1024,
			MaxContextSize:  512 * 1024,
		},
		History: HistoryConfig{
			Enabled:    true,
			File:       filepath.Join(home, ".agentsh", "history"),
			MaxEntries: 10000,
			IgnorePatterns: []string{
				`(?i)password`,
				`API_KEY`,
			},
		},
		Audit: AuditConfig{
			Enabled:       true,
			Path:          filepath.Join(home, ".agentsh", "logs", "commands.log"),
			MaxSize:       10 * 1024 * 1024,
			Retention:     5,
			RedactSecrets: true,
		},
	}
}

// Load builds the configuration from all layered sources. cliPath is the
// optional --config file; missing standard files are skipped silently.
func Load(cliPath string) (*Config, error) {
	cfg := Default()

	paths := []string{"/etc/agentsh/config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".agentsh", "config.yaml"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := cfg.mergeFile(p); err != nil {
			return nil, err
		}
	}

	if cliPath != "" {
		if err := cfg.mergeFile(cliPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadProject merges a project-level .agentshrc from dir, if present.
func (c *Config) LoadProject(dir string) error {
	p := filepath.Join(dir, ".agentshrc")
	if _, err := os.Stat(p); err != nil {
		return nil
	}
	return c.mergeFile(p)
}

// mergeFile unmarshals a YAML file over the current config. yaml.v3 leaves
// fields absent from the file untouched, so partial files merge naturally.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AGENTSH_MODE"); v != "" {
		c.Mode.Default = v
	}
	if v := os.Getenv("AGENTSH_SHELL"); v != "" {
		c.Mode.Shell = v
	}
	if v := os.Getenv("AGENTSH_LOG"); v != "" {
		c.Audit.Path = v
	}
}

// ApplySet applies --set key=value overrides. Keys use dotted paths matching
// the YAML layout (e.g. "safety.allow_ai_to_execute_sudo=true"). Values are
// decoded weakly so "true" and "30" coerce to the target field types.
func (c *Config) ApplySet(pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	overrides := map[string]any{}
	for _, pair := range pairs {
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("invalid --set value %q, expected key=value", pair)
		}
		node := overrides
		parts := strings.Split(key, ".")
		for i, part := range parts {
			if i == len(parts)-1 {
				node[part] = val
				break
			}
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(overrides); err != nil {
		return fmt.Errorf("invalid --set override: %w", err)
	}
	return nil
}

// Validate checks invariants that would make the session misbehave.
func (c *Config) Validate() error {
	if c.AI.Provider == "" {
		return fmt.Errorf("missing required field: ai.provider")
	}
	if c.AI.Model == "" {
		return fmt.Errorf("missing required field: ai.model")
	}
	switch c.Mode.Default {
	case "off", "assist":
	default:
		return fmt.Errorf("mode.default must be one of: off, assist (got %q)", c.Mode.Default)
	}
	return nil
}

// APIKey reads the configured API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.AI.APIKeyEnv)
}
