package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/stackdeploy/stackdeploy/internal/bootstrap"
	"github.com/stackdeploy/stackdeploy/internal/runlock"
	"github.com/stackdeploy/stackdeploy/internal/state"
)

func runDockerChecks(ctx context.Context, opts *Options, logger *slog.Logger) error {
	if _, err := exec.LookPath(opts.Docker); err != nil {
		return fmt.Errorf("docker binary not found in PATH: %w", err)
	}
	return newComposeClient(opts, logger).Version(ctx)
}

func runDoctorChecks(ctx context.Context, logger *slog.Logger, opts *Options, projectDir string) error {
	var fatalErrs []error

	if err := runDockerChecks(ctx, opts, logger); err != nil {
		logger.Error("docker compose check failed", "error", err)
		fatalErrs = append(fatalErrs, err)
	} else {
		logger.Info("docker compose check ok")
	}

	if opts.KDBX == "" {
		logger.Warn("no --kdbx given; stacks declaring secret_env cannot be deployed")
	} else if tree, err := openSecrets(opts, opts.KDBX); err != nil {
		logger.Error("kdbx check failed", "kdbx", opts.KDBX, "error", err)
		fatalErrs = append(fatalErrs, err)
	} else {
		logger.Info("kdbx check ok", "kdbx", opts.KDBX, "root", tree.Root.Name)
	}

	if lock, err := runlock.Acquire(opts.LockFile); err != nil {
		logger.Error("run lock check failed", "path", opts.LockFile, "error", err)
		fatalErrs = append(fatalErrs, err)
	} else {
		_ = lock.Release()
		logger.Info("run lock check ok", "path", opts.LockFile)
	}

	if opts.HistoryDB != "" {
		store, err := state.Open(ctx, opts.HistoryDB)
		if err != nil {
			logger.Error("history db check failed", "path", opts.HistoryDB, "error", err)
			fatalErrs = append(fatalErrs, err)
		} else {
			_ = store.Close()
			logger.Info("history db check ok", "path", opts.HistoryDB)
		}
	}

	if projectDir != "" {
		if vars, err := bootstrap.CheckEnvFile(projectDir); err != nil {
			logger.Error("bootstrap env check failed", "project_dir", projectDir, "error", err)
			fatalErrs = append(fatalErrs, err)
		} else {
			logger.Info("bootstrap env check ok", "project_dir", projectDir, "repo", vars[bootstrap.EnvGitURL])
		}
	}

	if _, err := exec.LookPath("git"); err != nil {
		logger.Warn("git not found in PATH; local file:// repositories cannot be polled", "error", err)
	}

	if len(fatalErrs) > 0 {
		return fmt.Errorf("doctor found %d fatal issue(s); see log for details", len(fatalErrs))
	}

	return nil
}
