package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The file transport shells out to git-upload-pack.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func newUpstream(t *testing.T) (*git.Repository, string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	hash := commitFile(t, repo, dir, "stack-deploy.toml", "name = \"db\"\nruns_on = [\"*\"]\n")
	return repo, dir, hash
}

func TestSyncCloneThenUnchangedThenUpdated(t *testing.T) {
	requireGit(t)
	upstream, upstreamDir, first := newUpstream(t)
	checkout := filepath.Join(t.TempDir(), "repo")
	opts := Options{URL: upstreamDir, Dir: checkout}

	res, err := Sync(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusCloned, res.Status)
	assert.Equal(t, first, res.Hash)
	assert.True(t, res.Changed())
	assert.FileExists(t, filepath.Join(checkout, "stack-deploy.toml"))

	res, err = Sync(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.False(t, res.Changed())

	second := commitFile(t, upstream, upstreamDir, "README.md", "stacks\n")
	res, err = Sync(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, res.Status)
	assert.Equal(t, second, res.Hash)
	assert.FileExists(t, filepath.Join(checkout, "README.md"))
}

func TestSyncReplacesNonRepositoryDirectory(t *testing.T) {
	requireGit(t)
	_, upstreamDir, first := newUpstream(t)
	checkout := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(checkout, "junk.txt"), []byte("x"), 0o644))

	res, err := Sync(context.Background(), Options{URL: upstreamDir, Dir: checkout})
	require.NoError(t, err)
	assert.Equal(t, StatusCloned, res.Status)
	assert.Equal(t, first, res.Hash)
	assert.NoFileExists(t, filepath.Join(checkout, "junk.txt"))
}

func TestSyncReclonesDivergedCheckout(t *testing.T) {
	requireGit(t)
	upstream, upstreamDir, _ := newUpstream(t)
	checkout := filepath.Join(t.TempDir(), "repo")
	opts := Options{URL: upstreamDir, Dir: checkout}

	_, err := Sync(context.Background(), opts)
	require.NoError(t, err)

	local, err := git.PlainOpen(checkout)
	require.NoError(t, err)
	commitFile(t, local, checkout, "local.txt", "diverged\n")
	remoteHead := commitFile(t, upstream, upstreamDir, "README.md", "stacks\n")

	res, err := Sync(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, StatusCloned, res.Status)
	assert.Equal(t, remoteHead, res.Hash)
	assert.True(t, res.Changed())
	assert.NoFileExists(t, filepath.Join(checkout, "local.txt"))
	assert.FileExists(t, filepath.Join(checkout, "README.md"))
}

func TestSyncValidatesOptions(t *testing.T) {
	_, err := Sync(context.Background(), Options{Dir: t.TempDir()})
	assert.ErrorContains(t, err, "url is required")

	_, err = Sync(context.Background(), Options{URL: "https://example.invalid/repo.git"})
	assert.ErrorContains(t, err, "directory is required")
}

func TestAuth(t *testing.T) {
	assert.Nil(t, Options{}.auth())
	auth := Options{Username: "bot", Token: "secret"}.auth()
	require.NotNil(t, auth)
	assert.Equal(t, "http-basic-auth", auth.Name())
}
