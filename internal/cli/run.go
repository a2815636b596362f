package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/deploy"
	"github.com/stackdeploy/stackdeploy/internal/gitsync"
	"github.com/stackdeploy/stackdeploy/internal/poller"
	"github.com/stackdeploy/stackdeploy/internal/stack"
)

const (
	defaultPollInterval = 300
	repoSecretsFile     = ".secrets.kdbx"
)

type runOptions struct {
	RepoDir      string
	RepoURL      string
	Username     string
	Token        string
	PollInterval int
}

// newRunCommand creates the "run" subcommand that polls the stacks repository and redeploys on change.
func newRunCommand(opts *Options) *cobra.Command {
	runOpts := runOptions{PollInterval: defaultPollInterval}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep a stacks repository checked out and deploy it whenever it changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			var envCfg gitEnv
			if err := parseEnv(&envCfg); err != nil {
				return err
			}
			if !cmd.Flags().Changed("repo-dir") && envPresent("STACKDEPLOY_REPO_DIR") {
				runOpts.RepoDir = envCfg.RepoDir
			}
			if !cmd.Flags().Changed("repo-url") && envPresent("GITHUB_URL") {
				runOpts.RepoURL = envCfg.URL
			}
			if !cmd.Flags().Changed("poll-interval") && envPresent("POLL_INTERVAL") {
				runOpts.PollInterval = envCfg.PollInterval
			}
			runOpts.Username = envCfg.Username
			runOpts.Token = envCfg.Token

			if runOpts.RepoDir == "" {
				return errors.New("--repo-dir is required")
			}
			if runOpts.PollInterval < 0 {
				return errors.New("--poll-interval must not be negative")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var commit string
			p := &poller.Poller{
				Interval: time.Duration(runOpts.PollInterval) * time.Second,
				Logger:   logger,
				Deploy: func(ctx context.Context) error {
					return deployRepo(ctx, opts, runOpts.RepoDir, commit)
				},
			}
			if runOpts.RepoURL != "" {
				p.Sync = func(ctx context.Context) (gitsync.Result, error) {
					res, err := gitsync.Sync(ctx, gitsync.Options{
						URL:      runOpts.RepoURL,
						Dir:      runOpts.RepoDir,
						Username: runOpts.Username,
						Token:    runOpts.Token,
						Logger:   logger,
					})
					if err == nil {
						commit = res.Hash
					}
					return res, err
				}
			}

			logger.Info("starting poller", "repo_dir", runOpts.RepoDir, "repo_url", runOpts.RepoURL, "interval", p.Interval)
			return p.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&runOpts.RepoDir, "repo-dir", "", "Checkout directory holding the stack manifests and .secrets.kdbx")
	cmd.Flags().StringVar(&runOpts.RepoURL, "repo-url", "", "Repository cloned into --repo-dir and pulled on every poll")
	cmd.Flags().IntVar(&runOpts.PollInterval, "poll-interval", defaultPollInterval, "Seconds between polls; 0 runs a single pass")

	return cmd
}

// deployRepo performs one locked deploy pass over the stacks in repoDir.
func deployRepo(ctx context.Context, opts *Options, repoDir, commit string) error {
	logger := LoggerFromContext(ctx)
	return withRunLock(opts, logger, func() error {
		kdbx := opts.KDBX
		if kdbx == "" {
			kdbx = filepath.Join(repoDir, repoSecretsFile)
		}
		tree, err := openSecrets(opts, kdbx)
		if err != nil {
			return err
		}

		seq, err := stack.LoadStacks(stack.LoadOptions{
			Root:   repoDir,
			Host:   hostFor(opts),
			Logger: logger,
		})
		if err != nil {
			return err
		}

		logger.Info("running a deploy", "stacks", len(seq), "commit", commit)
		driver := deploy.NewDriver(newComposeClient(opts, logger), tree, logger)
		report := driver.Deploy(ctx, seq)
		recordRun(ctx, opts, logger, report, commit)
		return summarize(logger, report)
	})
}
