package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackdeploy/stackdeploy/internal/gitsync"
)

func TestSinglePassWithoutInterval(t *testing.T) {
	var deploys int
	p := &Poller{
		Sync: func(context.Context) (gitsync.Result, error) {
			return gitsync.Result{Status: gitsync.StatusUnchanged}, nil
		},
		Deploy: func(context.Context) error { deploys++; return nil },
	}
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 1, deploys, "first pass deploys even when unchanged")
}

func TestFirstSyncFailureIsFatal(t *testing.T) {
	boom := errors.New("auth failed")
	p := &Poller{
		Interval: time.Millisecond,
		Sync:     func(context.Context) (gitsync.Result, error) { return gitsync.Result{}, boom },
		Deploy:   func(context.Context) error { t.Fatal("deploy must not run"); return nil },
	}
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDeploysOnlyOnChangeAfterFirstPass(t *testing.T) {
	results := []gitsync.Result{
		{Status: gitsync.StatusCloned},
		{Status: gitsync.StatusUnchanged},
		{Status: gitsync.StatusUpdated},
		{Status: gitsync.StatusUnchanged},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var syncs, deploys int
	p := &Poller{
		Interval: time.Millisecond,
		Sync: func(context.Context) (gitsync.Result, error) {
			if syncs == 2 {
				syncs++
				return gitsync.Result{}, errors.New("transient")
			}
			idx := syncs
			if idx > 2 {
				idx--
			}
			syncs++
			if idx >= len(results)-1 {
				cancel()
			}
			return results[idx], nil
		},
		Deploy: func(context.Context) error {
			deploys++
			return errors.New("deploy errors are logged only")
		},
	}
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 5, syncs)
	assert.Equal(t, 2, deploys)
}

func TestDeploysEveryPassWithoutSync(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var deploys atomic.Int32
	p := &Poller{
		Interval: time.Millisecond,
		Deploy: func(context.Context) error {
			if deploys.Add(1) == 3 {
				cancel()
			}
			return nil
		},
	}
	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int32(3), deploys.Load())
}

func TestRequiresDeploy(t *testing.T) {
	assert.Error(t, (&Poller{}).Run(context.Background()))
}
