// Package history persists AI interactions across sessions so "ai history"
// can show what was asked and proposed. Queries matching the configured
// ignore patterns are never written.
package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/logging"
)

// Entry is one recorded AI interaction.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Mode      string    `json:"mode"`
	Query     string    `json:"query"`
	Summary   string    `json:"summary,omitempty"`
}

// Store is a bounded append-only history file. Entries are kept in memory
// for display and flushed to disk as JSON lines.
type Store struct {
	cfg    config.HistoryConfig
	ignore []*regexp.Regexp
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
}

// NewStore loads the existing history file. Invalid ignore patterns are
// skipped with a warning; a missing or corrupt file starts empty.
func NewStore(cfg config.HistoryConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Store{cfg: cfg, logger: logger}

	for _, pattern := range cfg.IgnorePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("invalid history ignore pattern, skipping", "pattern", pattern, "err", err)
			continue
		}
		s.ignore = append(s.ignore, re)
	}

	if cfg.Enabled {
		s.entries = s.load()
	}

	return s
}

func (s *Store) load() []Entry {
	f, err := os.Open(s.cfg.File)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// Skip corrupt lines, keep the rest.
			continue
		}
		entries = append(entries, e)
	}

	if s.cfg.MaxEntries > 0 && len(entries) > s.cfg.MaxEntries {
		entries = entries[len(entries)-s.cfg.MaxEntries:]
	}
	return entries
}

// Append records one interaction. Ignored and disabled appends are silent.
func (s *Store) Append(mode, query, summary string) {
	if !s.cfg.Enabled {
		return
	}
	for _, re := range s.ignore {
		if re.MatchString(query) {
			s.logger.Debug("history entry matches ignore pattern, skipping")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Mode:      mode,
		Query:     query,
		Summary:   summary,
	}
	s.entries = append(s.entries, entry)

	if s.cfg.MaxEntries > 0 && len(s.entries) > s.cfg.MaxEntries {
		s.entries = s.entries[len(s.entries)-s.cfg.MaxEntries:]
		if err := s.rewrite(); err != nil {
			s.logger.Error("failed to rewrite history", "err", err)
		}
		return
	}

	if err := s.appendLine(entry); err != nil {
		s.logger.Error("failed to write history", "err", err)
	}
}

func (s *Store) appendLine(entry Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.File), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "%s\n", data)
	return err
}

// rewrite replaces the file with the in-memory entries. Caller holds the
// mutex.
func (s *Store) rewrite() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.File), 0o755); err != nil {
		return err
	}
	tmp := s.cfg.File + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range s.entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s\n", data)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.cfg.File)
}

// Recent returns up to n entries, newest last.
func (s *Store) Recent(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n >= len(s.entries) {
		out := make([]Entry, len(s.entries))
		copy(out, s.entries)
		return out
	}
	out := make([]Entry, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// Format renders recent entries for the "ai history" screen.
func (s *Store) Format(n int) string {
	entries := s.Recent(n)
	if len(entries) == 0 {
		return "No AI history yet.\n"
	}

	var b strings.Builder
	b.WriteString("Recent AI interactions:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  [%s] (%s) %s\n", e.Timestamp.Local().Format("2006-01-02 15:04"), e.Mode, e.Query)
		if e.Summary != "" {
			fmt.Fprintf(&b, "      %s\n", firstLine(e.Summary))
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
