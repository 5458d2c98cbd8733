package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/agentsh/internal/config"
	"github.com/aretw0/agentsh/internal/logging"
	"github.com/aretw0/agentsh/internal/shell"
	"github.com/aretw0/agentsh/pkg/domain"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	debug     bool
	setFlags  []string
	shellFlag string
	modeFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "agentsh",
	Short: "agentsh wraps your shell with an AI assistant",
	Long: `agentsh runs your normal shell inside a pseudo-terminal and watches for
"ai ..." command lines. Everything else passes through untouched. AI-proposed
commands are shown as a plan and only run after explicit confirmation.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cwd, err := os.Getwd(); err == nil {
			if err := cfg.LoadProject(cwd); err != nil {
				return err
			}
		}
		if shellFlag != "" {
			cfg.Mode.Shell = shellFlag
		}
		if modeFlag != "" {
			cfg.Mode.Default = modeFlag
		}
		if err := cfg.ApplySet(setFlags); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		level := slog.LevelWarn
		if debug || os.Getenv("AGENTSH_DEBUG") != "" {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		session := shell.NewSession(cfg, logger, version)
		err = session.Run(cmd.Context())

		// Mirror the wrapped shell's exit code.
		var exitErr *domain.ShellExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "path to a config file (merged over system and user config)")
	rootCmd.Flags().StringVar(&shellFlag, "shell", "", "shell to wrap (default: $SHELL)")
	rootCmd.Flags().StringVar(&modeFlag, "mode", "", "initial AI mode: off or assist")
	rootCmd.Flags().StringArrayVar(&setFlags, "set", nil, "override config values, e.g. --set safety.allow_ai_to_execute_sudo=true")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
