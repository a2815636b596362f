// Package poller repeatedly syncs the stacks repository and redeploys on change.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackdeploy/stackdeploy/internal/gitsync"
	"github.com/stackdeploy/stackdeploy/internal/logging"
)

// Poller drives the run loop.
//
// With a Sync function, Deploy is invoked on the first pass and whenever the
// repository changed afterwards. Without one, Deploy is invoked on every pass.
type Poller struct {
	// Interval between passes. Zero means a single pass.
	Interval time.Duration
	Sync     func(ctx context.Context) (gitsync.Result, error)
	Deploy   func(ctx context.Context) error
	Logger   *slog.Logger
}

// Run executes passes until ctx is done. The first failed sync is returned as
// an error since nothing can be deployed without a checkout; later sync
// failures are logged and retried on the next tick. Deploy failures are only
// logged.
func (p *Poller) Run(ctx context.Context) error {
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if p.Deploy == nil {
		return fmt.Errorf("poller has no deploy function")
	}

	first := true
	for {
		if err := p.pass(ctx, logger, first); err != nil {
			return err
		}
		first = false

		if p.Interval <= 0 {
			return nil
		}
		logger.Debug("waiting for next poll", "interval", p.Interval)
		select {
		case <-ctx.Done():
			logger.Info("poller stopped")
			return nil
		case <-time.After(p.Interval):
		}
	}
}

func (p *Poller) pass(ctx context.Context, logger *slog.Logger, first bool) error {
	changed := true
	if p.Sync != nil {
		res, err := p.Sync(ctx)
		if err != nil {
			if first {
				return fmt.Errorf("initial repository sync failed: %w", err)
			}
			logger.Error("repository sync failed", "err", err)
			return nil
		}
		changed = first || res.Changed()
		logger.Info("repository synced", "status", string(res.Status), "commit", res.Hash)
	}
	if !changed {
		logger.Debug("repository unchanged, skipping deploy")
		return nil
	}
	if err := p.Deploy(ctx); err != nil {
		logger.Error("deploy failed", "err", err)
	}
	return nil
}
