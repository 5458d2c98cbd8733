// Package sysinfo gathers local system context for AI queries: OS and
// kernel identification, the current user and directory, and optional
// project file contents bounded by the context size limits.
package sysinfo

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/aretw0/agentsh/internal/config"
)

// OSInfo identifies the host operating system.
type OSInfo struct {
	Name    string
	Version string
	Arch    string
	Kernel  string
}

// FileContext is one project file attached to the AI context.
type FileContext struct {
	Path      string
	Content   string
	Truncated bool
}

// SystemContext is the collected host context.
type SystemContext struct {
	OS       OSInfo
	CWD      string
	User     string
	Hostname string
	Files    []FileContext
}

// Collect gathers the host context. Failures degrade to "unknown" values
// rather than erroring; context is best-effort.
func Collect(cfg config.ContextConfig, logger *slog.Logger) SystemContext {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	return SystemContext{
		OS:       collectOSInfo(),
		CWD:      cwd,
		User:     user,
		Hostname: hostname(),
		Files:    collectFiles(cfg, logger),
	}
}

// FormatForPrompt renders the context block prepended to AI queries.
func (c SystemContext) FormatForPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "OS: %s %s (%s)\n", c.OS.Name, c.OS.Version, c.OS.Arch)
	fmt.Fprintf(&b, "Kernel: %s\n", c.OS.Kernel)
	fmt.Fprintf(&b, "User: %s@%s\n", c.User, c.Hostname)
	fmt.Fprintf(&b, "CWD: %s\n", c.CWD)

	if len(c.Files) > 0 {
		b.WriteString("\nProject files:\n")
		for _, f := range c.Files {
			fmt.Fprintf(&b, "\n--- %s ---\n", f.Path)
			b.WriteString(f.Content)
			if f.Truncated {
				b.WriteString("\n[truncated]")
			}
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// OSString is the short form used in query context lines.
func (c SystemContext) OSString() string {
	if c.OS.Kernel != "" && c.OS.Kernel != "unknown" {
		return fmt.Sprintf("%s %s %s", c.OS.Name, c.OS.Arch, c.OS.Kernel)
	}
	return fmt.Sprintf("%s %s", c.OS.Name, c.OS.Arch)
}

func collectOSInfo() OSInfo {
	kernel := commandOutput("uname", "-r")
	if kernel == "" {
		kernel = "unknown"
	}
	version := osVersion()
	if version == "" {
		version = "unknown"
	}
	return OSInfo{
		Name:    runtime.GOOS,
		Version: version,
		Arch:    runtime.GOARCH,
		Kernel:  kernel,
	}
}

// osVersion reads /etc/os-release on Linux and falls back to sw_vers on
// macOS.
func osVersion() string {
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if v, ok := strings.CutPrefix(line, "PRETTY_NAME="); ok {
				return strings.Trim(v, `"`)
			}
		}
	}
	if v := commandOutput("sw_vers", "-productVersion"); v != "" {
		return "macOS " + v
	}
	return ""
}

func hostname() string {
	if h := commandOutput("hostname"); h != "" {
		return h
	}
	if h := os.Getenv("HOSTNAME"); h != "" {
		return h
	}
	return "localhost"
}

// commandOutput runs a command and returns its trimmed stdout, or "" on
// any failure.
func commandOutput(name string, args ...string) string {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// collectFiles reads the configured project files, honoring the per-file
// and total size limits.
func collectFiles(cfg config.ContextConfig, logger *slog.Logger) []FileContext {
	var files []FileContext
	var total int64

	for _, name := range cfg.IncludeFiles {
		fc, ok := readFileContext(name, cfg, logger)
		if !ok {
			continue
		}
		total += int64(len(fc.Content))
		if total > cfg.MaxContextSize {
			if logger != nil {
				logger.Debug("reached max context size, stopping file collection")
			}
			break
		}
		files = append(files, fc)
	}

	return files
}

func readFileContext(path string, cfg config.ContextConfig, logger *slog.Logger) (FileContext, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return FileContext{}, false
	}

	if info.Size() > cfg.MaxFileSize {
		if logger != nil {
			logger.Debug("file exceeds max size, skipping", "path", path)
		}
		return FileContext{}, false
	}

	for _, pattern := range cfg.ExcludePatterns {
		if strings.Contains(path, strings.TrimSuffix(pattern, "*")) {
			return FileContext{}, false
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to read context file", "path", path, "err", err)
		}
		return FileContext{}, false
	}

	content := string(data)
	truncated := int64(len(content)) > cfg.MaxFileSize
	if truncated {
		content = content[:cfg.MaxFileSize]
	}

	return FileContext{Path: path, Content: content, Truncated: truncated}, true
}
