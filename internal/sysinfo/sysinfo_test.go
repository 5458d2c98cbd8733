package sysinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectOSInfo(t *testing.T) {
	info := collectOSInfo()
	assert.NotEmpty(t, info.Name)
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.Kernel)
}

func TestHostnameNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, hostname())
}

func TestFormatForPrompt(t *testing.T) {
	ctx := Collect(config.Default().Context, nil)
	formatted := ctx.FormatForPrompt()

	assert.Contains(t, formatted, "OS:")
	assert.Contains(t, formatted, "User:")
	assert.Contains(t, formatted, "CWD:")
}

func TestCollectFilesRespectsLimits(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.txt")
	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(small, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", 200)), 0o644))

	cfg := config.ContextConfig{
		IncludeFiles:   []string{small, big},
		MaxFileSize:    100,
		MaxContextSize: 1024,
	}
	files := collectFiles(cfg, nil)

	require.Len(t, files, 1)
	assert.Equal(t, small, files[0].Path)
	assert.Equal(t, "hello", files[0].Content)
	assert.False(t, files[0].Truncated)
}

func TestCollectFilesExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "debug.log")
	require.NoError(t, os.WriteFile(logFile, []byte("noise"), 0o644))

	cfg := config.ContextConfig{
		IncludeFiles:    []string{logFile},
		ExcludePatterns: []string{".log"},
		MaxFileSize:     1024,
		MaxContextSize:  4096,
	}
	assert.Empty(t, collectFiles(cfg, nil))
}

func TestCollectFilesStopsAtContextBudget(t *testing.T) {
	dir := t.TempDir()
	var include []string
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("y", 40)), 0o644))
		include = append(include, p)
	}

	cfg := config.ContextConfig{
		IncludeFiles:   include,
		MaxFileSize:    1024,
		MaxContextSize: 100,
	}
	files := collectFiles(cfg, nil)
	// The third file pushes the total past the budget and is dropped along
	// with everything after it.
	assert.Len(t, files, 2)
}

func TestOSString(t *testing.T) {
	ctx := SystemContext{OS: OSInfo{Name: "linux", Arch: "amd64", Kernel: "6.1.0"}}
	assert.Equal(t, "linux amd64 6.1.0", ctx.OSString())

	ctx.OS.Kernel = "unknown"
	assert.Equal(t, "linux amd64", ctx.OSString())
}

func TestSystemReportHasHeader(t *testing.T) {
	assert.Contains(t, SystemReport(), "=== System Information ===")
}

func TestPackagesReportHasHeader(t *testing.T) {
	assert.Contains(t, PackagesReport(), "=== Installed Packages ===")
}
