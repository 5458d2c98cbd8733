package shell

import (
	"os"
	"strings"
)

// passthroughVars are the only parent variables handed to the child shell.
var passthroughVars = map[string]bool{
	"HOME":     true,
	"USER":     true,
	"LOGNAME":  true,
	"PATH":     true,
	"LANG":     true,
	"LC_ALL":   true,
	"LC_CTYPE": true,
	"TERM":     true,
	"EDITOR":   true,
	"VISUAL":   true,
	"PAGER":    true,
	"SHELL":    true,
	"ZDOTDIR":  true,
	"BASH_ENV": true,
}

// buildEnv filters the parent environment down to the allow-list plus
// credential variables the AI backends need, and marks the session.
func buildEnv(version string) []string {
	return filterEnv(os.Environ(), version)
}

func filterEnv(environ []string, version string) []string {
	var env []string
	hasTerm := false

	for _, kv := range environ {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if passthroughVars[key] || strings.HasSuffix(key, "_API_KEY") || strings.HasSuffix(key, "_TOKEN") {
			env = append(env, kv)
			if key == "TERM" {
				hasTerm = true
			}
		}
	}

	if !hasTerm {
		env = append(env, "TERM=xterm-256color")
	}

	env = append(env, "AGENTSH=1")
	env = append(env, "AGENTSH_VERSION="+version)
	return env
}
