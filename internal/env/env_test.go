package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLaterWins(t *testing.T) {
	got := Merge(Vars{"A": "1", "B": "1"}, nil, Vars{"B": "2", "C": "3"})
	assert.Equal(t, Vars{"A": "1", "B": "2", "C": "3"}, got)
}

func TestListSorted(t *testing.T) {
	v := Vars{"ZED": "z", "ALPHA": "a=b", "MID": ""}
	assert.Equal(t, []string{"ALPHA=a=b", "MID=", "ZED=z"}, v.List())
	assert.Equal(t, []string{"ALPHA", "MID", "ZED"}, v.Keys())
}

func TestFromOS(t *testing.T) {
	t.Setenv("STACKDEPLOY_ENV_TEST", "value=with=equals")
	assert.Equal(t, "value=with=equals", FromOS()["STACKDEPLOY_ENV_TEST"])
}

func TestWriteAndLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	want := Vars{
		"GITHUB_URL":      "https://github.com/example/infra.git",
		"GITHUB_TOKEN":    `tok "quoted" #hash`,
		"STACK_KDBX_PASS": "pass with spaces",
		"POLL_INTERVAL":   "300",
	}
	require.NoError(t, WriteEnvFile(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadEnvFileMissing(t *testing.T) {
	_, err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
