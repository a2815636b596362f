package cli

import (
	"os"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// baseEnv defines root CLI defaults sourced from STACKDEPLOY_* env vars.
type baseEnv struct {
	// KDBX is the KeePass database from STACKDEPLOY_KDBX.
	KDBX string `env:"STACKDEPLOY_KDBX"`
	// Interactive allows prompts from STACKDEPLOY_INTERACTIVE.
	Interactive bool `env:"STACKDEPLOY_INTERACTIVE"`
	// Hostname is the host identity from STACKDEPLOY_HOSTNAME.
	Hostname string `env:"STACKDEPLOY_HOSTNAME"`
	// HistoryDB is the run history path from STACKDEPLOY_HISTORY_DB.
	HistoryDB string `env:"STACKDEPLOY_HISTORY_DB"`
	// LockFile is the run lock path from STACKDEPLOY_LOCK_FILE.
	LockFile string `env:"STACKDEPLOY_LOCK_FILE"`
	// Docker is the docker binary from STACKDEPLOY_DOCKER.
	Docker string `env:"STACKDEPLOY_DOCKER"`
	// LogLevel is the logging level from STACKDEPLOY_LOG_LEVEL.
	LogLevel string `env:"STACKDEPLOY_LOG_LEVEL"`
}

// gitEnv captures repository access for run and bootstrap.
type gitEnv struct {
	// URL is the stacks repository from GITHUB_URL.
	URL string `env:"GITHUB_URL"`
	// Username is the git user from GITHUB_USERNAME.
	Username string `env:"GITHUB_USERNAME" envDefault:"oauth2"`
	// Token is the access token from GITHUB_TOKEN.
	Token string `env:"GITHUB_TOKEN"`
	// PollInterval is the seconds between polls from POLL_INTERVAL.
	PollInterval int `env:"POLL_INTERVAL"`
	// RepoDir is the checkout location from STACKDEPLOY_REPO_DIR.
	RepoDir string `env:"STACKDEPLOY_REPO_DIR"`
}

// parseEnv fills target from env vars via caarlos0/env.
func parseEnv(target any) error {
	return envparse.Parse(target)
}

// envPresent reports whether a non-empty env var exists.
func envPresent(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}

// applyBaseEnv copies STACKDEPLOY_* values into opts for flags the user did not set.
func applyBaseEnv(cmd *cobra.Command, opts *Options) error {
	var envCfg baseEnv
	if err := parseEnv(&envCfg); err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("kdbx") && envPresent("STACKDEPLOY_KDBX") {
		opts.KDBX = envCfg.KDBX
	}
	if !flags.Changed("interactive") && envPresent("STACKDEPLOY_INTERACTIVE") {
		opts.Interactive = envCfg.Interactive
	}
	if !flags.Changed("hostname") && envPresent("STACKDEPLOY_HOSTNAME") {
		opts.Hostname = envCfg.Hostname
	}
	if !flags.Changed("history-db") && envPresent("STACKDEPLOY_HISTORY_DB") {
		opts.HistoryDB = envCfg.HistoryDB
	}
	if !flags.Changed("lock-file") && envPresent("STACKDEPLOY_LOCK_FILE") {
		opts.LockFile = envCfg.LockFile
	}
	if !flags.Changed("docker") && envPresent("STACKDEPLOY_DOCKER") {
		opts.Docker = envCfg.Docker
	}
	if !flags.Changed("log-level") && envPresent("STACKDEPLOY_LOG_LEVEL") {
		if err := flags.Set("log-level", envCfg.LogLevel); err != nil {
			return err
		}
	}
	return nil
}
