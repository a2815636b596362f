package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackdeploy/stackdeploy/internal/env"
)

// fakeDocker writes a shell script that records its cwd, args and SECRET_TOKEN
// into record, then exits with code.
func fakeDocker(t *testing.T, record string, code int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a unix shell")
	}
	script := "#!/bin/sh\n" +
		"echo \"cwd=$(pwd)\" >> " + record + "\n" +
		"echo \"args=$*\" >> " + record + "\n" +
		"echo \"token=${SECRET_TOKEN}\" >> " + record + "\n" +
		"echo progress output\n" +
		fmt.Sprintf("exit %d\n", code)
	path := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestUpPassesEnvAndDir(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record.txt")
	stackDir := t.TempDir()
	c := NewClient(fakeDocker(t, record, 0), nil)

	err := c.Up(context.Background(), stackDir, env.Merge(env.FromOS(), env.Vars{"SECRET_TOKEN": "abc123"}))
	require.NoError(t, err)

	raw, err := os.ReadFile(record)
	require.NoError(t, err)
	got := string(raw)
	resolved, err := filepath.EvalSymlinks(stackDir)
	require.NoError(t, err)
	assert.True(t, strings.Contains(got, "cwd="+stackDir) || strings.Contains(got, "cwd="+resolved), got)
	assert.Contains(t, got, "args=compose up --remove-orphans --detach --wait")
	assert.Contains(t, got, "token=abc123")
}

func TestDownFailureCarriesExitStatus(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record.txt")
	stackDir := t.TempDir()
	c := NewClient(fakeDocker(t, record, 3), nil)

	err := c.Down(context.Background(), stackDir)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, stackDir, exitErr.Dir)
	assert.Contains(t, err.Error(), "exit status 3")

	raw, err := os.ReadFile(record)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "args=compose down --remove-orphans")
	assert.Contains(t, string(raw), "token=\n")
}

func TestMissingBinary(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "no-such-docker"), nil)
	err := c.Version(context.Background())
	require.Error(t, err)
	var exitErr *ExitError
	assert.NotErrorAs(t, err, &exitErr)
}
