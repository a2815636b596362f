// Package gitsync keeps a local checkout of the stacks repository current.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/stackdeploy/stackdeploy/internal/logging"
)

// Status describes what Sync did to the checkout.
type Status string

const (
	StatusCloned    Status = "cloned"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
)

// Result is the outcome of one Sync.
type Result struct {
	Status Status
	// Hash is the HEAD commit after the sync.
	Hash string
}

// Changed reports whether the checkout content differs from before the sync.
func (r Result) Changed() bool {
	return r.Status != StatusUnchanged
}

// Options configure Sync.
type Options struct {
	URL      string
	Dir      string
	Username string
	Token    string
	Logger   *slog.Logger
}

func (o Options) auth() transport.AuthMethod {
	if o.Username == "" && o.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: o.Username, Password: o.Token}
}

// Sync clones opts.URL into opts.Dir, or fast-forwards an existing checkout.
// A directory that exists but is not a repository, or a checkout that can no
// longer be fast-forwarded, is removed and cloned again.
func Sync(ctx context.Context, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.URL == "" {
		return Result{}, errors.New("repository url is required")
	}
	if opts.Dir == "" {
		return Result{}, errors.New("repository directory is required")
	}

	repo, err := git.PlainOpen(opts.Dir)
	switch {
	case err == nil:
		return pull(ctx, repo, opts, logger)
	case errors.Is(err, git.ErrRepositoryNotExists):
		if _, statErr := os.Stat(opts.Dir); statErr == nil {
			logger.Warn("removing non-repository directory before clone", "dir", opts.Dir)
			if rmErr := os.RemoveAll(opts.Dir); rmErr != nil {
				return Result{}, fmt.Errorf("failed to remove %s: %w", opts.Dir, rmErr)
			}
		}
		return clone(ctx, opts, logger)
	default:
		return Result{}, fmt.Errorf("failed to open repository %s: %w", opts.Dir, err)
	}
}

func clone(ctx context.Context, opts Options, logger *slog.Logger) (Result, error) {
	logger.Info("cloning repository", "url", opts.URL, "dir", opts.Dir)
	repo, err := git.PlainCloneContext(ctx, opts.Dir, false, &git.CloneOptions{
		URL:  opts.URL,
		Auth: opts.auth(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to clone %s: %w", opts.URL, err)
	}
	hash, err := headHash(repo)
	if err != nil {
		return Result{}, err
	}
	return Result{Status: StatusCloned, Hash: hash}, nil
}

func pull(ctx context.Context, repo *git.Repository, opts Options, logger *slog.Logger) (Result, error) {
	before, err := headHash(repo)
	if err != nil {
		return Result{}, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("failed to open worktree %s: %w", opts.Dir, err)
	}

	logger.Debug("pulling repository", "dir", opts.Dir)
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: git.DefaultRemoteName,
		Auth:       opts.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Result{Status: StatusUnchanged, Hash: before}, nil
	}
	if errors.Is(err, git.ErrNonFastForwardUpdate) {
		// upstream was force-pushed or the checkout was committed to locally
		logger.Warn("checkout diverged from remote, cloning again", "dir", opts.Dir, "head", before)
		if rmErr := os.RemoveAll(opts.Dir); rmErr != nil {
			return Result{}, fmt.Errorf("failed to remove %s: %w", opts.Dir, rmErr)
		}
		return clone(ctx, opts, logger)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to pull %s: %w", opts.Dir, err)
	}

	after, err := headHash(repo)
	if err != nil {
		return Result{}, err
	}
	if after == before {
		return Result{Status: StatusUnchanged, Hash: after}, nil
	}
	logger.Info("repository updated", "from", before, "to", after)
	return Result{Status: StatusUpdated, Hash: after}, nil
}

func headHash(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}
