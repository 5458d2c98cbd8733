// Package safety analyzes proposed shell commands for dangerous operations:
// destructive filesystem changes, privilege escalation, firewall and
// database damage, and policy-blocked patterns.
//
// A Classifier holds only precompiled read-only pattern state, so Analyze is
// deterministic and safe for concurrent use.
package safety

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aretw0/agentsh/internal/config"
)

// Flags is the risk-flag record computed for one command. It is never
// mutated after Analyze returns it.
type Flags struct {
	IsDestructive          bool
	RequiresSudo           bool
	AffectsCriticalService bool
	ModifiesPackages       bool
	ModifiesProtectedPath  bool
	AffectsDatabase        bool
	AffectsNetwork         bool
	IsBlocked              bool
	Warnings               []string
}

// HasConcerns reports whether any safety flag fired.
func (f *Flags) HasConcerns() bool {
	return f.IsDestructive || f.RequiresSudo || f.AffectsCriticalService ||
		f.ModifiesPackages || f.ModifiesProtectedPath || f.AffectsDatabase ||
		f.AffectsNetwork || f.IsBlocked
}

// Summary returns short tags for every fired flag, in a stable order.
func (f *Flags) Summary() []string {
	var tags []string
	if f.IsDestructive {
		tags = append(tags, "DESTRUCTIVE")
	}
	if f.RequiresSudo {
		tags = append(tags, "SUDO")
	}
	if f.AffectsCriticalService {
		tags = append(tags, "CRITICAL SERVICE")
	}
	if f.ModifiesPackages {
		tags = append(tags, "PACKAGE CHANGE")
	}
	if f.ModifiesProtectedPath {
		tags = append(tags, "PROTECTED PATH")
	}
	if f.AffectsDatabase {
		tags = append(tags, "DATABASE")
	}
	if f.AffectsNetwork {
		tags = append(tags, "NETWORK/FIREWALL")
	}
	if f.IsBlocked {
		tags = append(tags, "BLOCKED")
	}
	return tags
}

var destructiveFSPatterns = compileAll(
	`rm\s+.*-[rR]`,              // rm -r, rm -R
	`rm\s+-[^-]*f`,              // rm -f
	`rm\s+/`,                    // rm on anything in root
	`rmdir\s+--ignore-fail`,     // rmdir with force
	`find\s+.*-delete`,          // find -delete
	`find\s+.*-exec\s+rm`,       // find -exec rm
	`>\s*/dev/sd[a-z]`,          // redirect to block device
	`mv\s+/\s`,                  // moving root
	`chmod\s+-R\s+777`,          // chmod -R 777
	`chown\s+-R`,                // chown -R
	`truncate\s+`,               // truncate files
	`>\s*/dev/null\s+2>&1\s*<`,  // overwrite with null
	`cat\s+/dev/zero`,           // overwrite with zeros
	`cat\s+/dev/urandom`,        // overwrite with random
	`:\s*>\s*\S+`,               // truncate via :>
	`rsync\s+.*--delete`,        // rsync with delete
)

var blockDevicePatterns = compileAll(
	`dd\s+.*of=/dev/`,
	`mkfs`,
	`fdisk`,
	`parted`,
	`wipefs`,
	`shred\s+/dev/`,
)

var networkPatterns = compileAll(
	`iptables\s+-F`,              // flush rules
	`iptables\s+-P\s+\w+\s+DROP`, // default drop
	`ufw\s+disable`,
	`firewall-cmd\s+--panic`,
	`nft\s+flush`,
	`ip\s+route\s+(del|flush)`,
	`ip\s+addr\s+(del|flush)`,
	`ip\s+link\s+set\s+\w+\s+down`,
	`ifconfig\s+\w+\s+down`,
	`route\s+del`,
	`iptables\s+-X`,
	`iptables\s+-D`,
)

var databasePatterns = compileAll(
	`DROP\s+(DATABASE|TABLE|SCHEMA)`,
	`TRUNCATE\s+TABLE`,
	`DELETE\s+FROM\s+\w+\s*(;|$)`, // DELETE without WHERE
	`mysql\s+.*-e\s*['"].*DROP`,
	`psql\s+.*-c\s*['"].*DROP`,
	`mongo\s+.*--eval\s*['"].*drop`,
	`redis-cli\s+.*FLUSHALL`,
	`redis-cli\s+.*FLUSHDB`,
)

var criticalServicePatterns = compileAll(
	`systemctl\s+(stop|restart|disable)\s+ssh`,
	`systemctl\s+(stop|restart|disable)\s+sshd`,
	`service\s+ssh\s+(stop|restart)`,
	`service\s+sshd\s+(stop|restart)`,
	`kill\s+-9\s+1\b`, // kill init
	`pkill\s+.*init`,
	`systemctl\s+.*halt`,
	`shutdown`,
	`reboot`,
	`init\s+[06]`,
)

var packagePatterns = compileAll(
	`apt(-get)?\s+(install|remove|purge|autoremove)`,
	`apt\s+.*--purge`,
	`dpkg\s+(-r|-P|--remove|--purge)`,
	`yum\s+(install|remove|erase)`,
	`dnf\s+(install|remove|erase)`,
	`pacman\s+-[RS]`,
	`brew\s+(install|uninstall|remove)`,
	`pip\s+uninstall`,
	`npm\s+(uninstall|remove).*-g`,
	`cargo\s+uninstall`,
)

var sudoPattern = regexp.MustCompile(`(^|\||&&|;)\s*sudo\s`)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

// Classifier matches commands against the built-in category patterns plus a
// policy-configured blocklist and protected-path list. Construct once at
// startup; all state is read-only afterward.
type Classifier struct {
	policy         config.SafetyPolicy
	blocked        []blockedPattern
	protectedPaths []string
}

type blockedPattern struct {
	source string
	re     *regexp.Regexp
}

// NewClassifier compiles the policy's blocklist and expands its protected
// paths. Invalid blocklist patterns are skipped with a warning rather than
// failing the session.
func NewClassifier(policy config.SafetyPolicy, logger *slog.Logger) *Classifier {
	c := &Classifier{policy: policy}
	for _, p := range policy.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping invalid blocklist pattern", "pattern", p, "err", err)
			}
			continue
		}
		c.blocked = append(c.blocked, blockedPattern{source: p, re: re})
	}
	for _, p := range policy.ProtectedPaths {
		c.protectedPaths = append(c.protectedPaths, expandHome(p))
	}
	return c
}

// Policy returns the policy this classifier was built from.
func (c *Classifier) Policy() config.SafetyPolicy {
	return c.policy
}

// Analyze computes the risk flags for a command. It is total: malformed or
// empty input yields flags, never an error. The blocklist short-circuits so
// a blocked command carries exactly one warning.
func (c *Classifier) Analyze(cmd string) *Flags {
	flags := &Flags{}

	for _, bp := range c.blocked {
		if bp.re.MatchString(cmd) {
			flags.IsBlocked = true
			flags.Warnings = append(flags.Warnings,
				fmt.Sprintf("Command matches blocked pattern: %s", bp.source))
			return flags
		}
	}

	if sudoPattern.MatchString(cmd) || strings.HasPrefix(strings.TrimSpace(cmd), "sudo ") {
		flags.RequiresSudo = true
		flags.Warnings = append(flags.Warnings, "Command requires elevated privileges")
	}

	if matchAny(destructiveFSPatterns, cmd) {
		flags.IsDestructive = true
		flags.Warnings = append(flags.Warnings, "Command may delete or modify files")
	}

	if matchAny(blockDevicePatterns, cmd) {
		flags.IsDestructive = true
		flags.Warnings = append(flags.Warnings, "Command operates on block devices")
	}

	if matchAny(networkPatterns, cmd) {
		flags.IsDestructive = true
		flags.AffectsNetwork = true
		flags.Warnings = append(flags.Warnings, "Command modifies network/firewall configuration")
	}

	if matchAny(databasePatterns, cmd) {
		flags.IsDestructive = true
		flags.AffectsDatabase = true
		flags.Warnings = append(flags.Warnings, "Command may destroy database data")
	}

	if matchAny(criticalServicePatterns, cmd) {
		flags.AffectsCriticalService = true
		flags.Warnings = append(flags.Warnings, "Command affects critical system services")
	}

	if matchAny(packagePatterns, cmd) {
		flags.ModifiesPackages = true
		flags.Warnings = append(flags.Warnings, "Command modifies installed packages")
	}

	for i, expanded := range c.protectedPaths {
		if strings.Contains(cmd, expanded) {
			flags.ModifiesProtectedPath = true
			flags.Warnings = append(flags.Warnings,
				fmt.Sprintf("Command affects protected path: %s", c.policy.ProtectedPaths[i]))
		}
	}

	return flags
}

// NeedsConfirmation decides whether a command with these flags must pass the
// dangerous-step confirmation prompt. Critical-service, database and network
// flags always require confirmation regardless of policy toggles.
func (c *Classifier) NeedsConfirmation(flags *Flags) bool {
	if flags.IsBlocked {
		return true // always confirm blocked, even though it will be rejected
	}
	if flags.IsDestructive && c.policy.RequireConfirmationForDestructive {
		return true
	}
	if flags.RequiresSudo && c.policy.RequireConfirmationForSudo {
		return true
	}
	if flags.AffectsCriticalService || flags.AffectsDatabase || flags.AffectsNetwork {
		return true
	}
	return false
}

func matchAny(patterns []*regexp.Regexp, cmd string) bool {
	for _, re := range patterns {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}
