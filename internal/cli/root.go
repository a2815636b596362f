// Package cli defines the command-line interface for stackdeploy.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/compose"
	"github.com/stackdeploy/stackdeploy/internal/logging"
	"github.com/stackdeploy/stackdeploy/internal/runlock"
)

// Options stores global CLI options shared between commands.
type Options struct {
	// KDBX is the KeePass database consulted for secrets.
	KDBX string
	// Password is the KeePass passphrase given on the command line.
	Password string
	// Interactive allows prompting for missing credentials.
	Interactive bool
	// Hostname overrides the local host identity used by runs_on.
	Hostname string
	// HistoryDB is the optional sqlite run history location.
	HistoryDB string
	// LockFile guards against concurrent runs on the same host.
	LockFile string
	// Docker is the docker CLI binary.
	Docker   string
	LogLevel logging.Level
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	rootOpts := &Options{
		LockFile: runlock.DefaultPath(),
		Docker:   compose.DefaultBinary,
		LogLevel: logging.LevelInfo,
	}

	rootCmd := newRootCommand(rootOpts, logger)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stackdeploy",
		Short:         "stackdeploy launches docker compose stacks in dependency order",
		Long:          "stackdeploy discovers stack-deploy manifests, orders them by their dependencies, injects secrets from a KeePass database and drives docker compose for every stack scheduled on this host.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyBaseEnv(cmd, opts); err != nil {
				return err
			}
			level := logging.ParseLevel(cmd.Flag("log-level").Value.String())
			opts.LogLevel = level
			logger = logging.NewLogger(cmd.ErrOrStderr(), level)
			cmd.SetContext(context.WithValue(cmd.Context(), loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.KDBX, "kdbx", "", "Path to the KeePass database holding stack secrets")
	flags.StringVar(&opts.Password, "password", "", "KeePass passphrase (defaults to $STACK_KDBX_PASS)")
	flags.BoolVar(&opts.Interactive, "interactive", false, "Prompt for the KeePass passphrase when it is not otherwise provided")
	flags.StringVar(&opts.Hostname, "hostname", "", "Host identity matched against runs_on (defaults to the OS hostname)")
	flags.StringVar(&opts.HistoryDB, "history-db", "", "Path to a sqlite database recording deploy and stop runs")
	flags.StringVar(&opts.LockFile, "lock-file", opts.LockFile, "Lock file preventing concurrent runs on this host")
	flags.StringVar(&opts.Docker, "docker", opts.Docker, "docker CLI binary")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newGetSecretCommand(opts),
		newStackDeployCommand(opts),
		newStackStopCommand(opts),
		newStackOrderCommand(opts),
		newRunCommand(opts),
		newBootstrapCommand(opts),
		newHistoryCommand(opts),
		newDoctorCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
