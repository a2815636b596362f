package cli

import (
	"context"
	"log/slog"

	"github.com/stackdeploy/stackdeploy/internal/compose"
	"github.com/stackdeploy/stackdeploy/internal/deploy"
	"github.com/stackdeploy/stackdeploy/internal/ghoutput"
	"github.com/stackdeploy/stackdeploy/internal/runlock"
	"github.com/stackdeploy/stackdeploy/internal/state"
)

func newComposeClient(opts *Options, logger *slog.Logger) *compose.Client {
	return compose.NewClient(opts.Docker, logger)
}

// withRunLock runs fn while holding the host-wide run lock.
func withRunLock(opts *Options, logger *slog.Logger, fn func() error) error {
	lock, err := runlock.Acquire(opts.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("failed to release run lock", "path", opts.LockFile, "err", err)
		}
	}()
	return fn()
}

// recordRun appends report to the run history when --history-db is set.
// History failures are logged and never fail the run.
func recordRun(ctx context.Context, opts *Options, logger *slog.Logger, report deploy.Report, commit string) {
	if opts.HistoryDB == "" {
		return
	}
	store, err := state.Open(ctx, opts.HistoryDB)
	if err != nil {
		logger.Warn("failed to open run history", "path", opts.HistoryDB, "err", err)
		return
	}
	defer store.Close()

	run := state.RunFromReport(report, hostFor(opts), commit)
	if err := store.Record(ctx, run); err != nil {
		logger.Warn("failed to record run", "run", run.ID, "err", err)
		return
	}
	logger.Debug("run recorded", "run", run.ID, "stacks", len(run.Stacks), "failed", run.Failed())
}

// summarize logs the totals of report, publishes them as GitHub Actions outputs
// when running inside a workflow, and returns the aggregated error.
func summarize(logger *slog.Logger, report deploy.Report) error {
	failed := report.Failed()
	logger.Info("run finished", "action", string(report.Action), "stacks", len(report.Outcomes), "failed", len(failed))
	if err := ghoutput.Publish(ghoutput.Values(report)); err != nil {
		logger.Warn("failed to write step outputs", "err", err)
	}
	return report.Err()
}
