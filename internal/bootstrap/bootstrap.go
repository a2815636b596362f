// Package bootstrap prepares a compose project that runs stackdeploy itself as
// a long-lived poller next to the stacks it manages.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/stackdeploy/stackdeploy/internal/env"
	"github.com/stackdeploy/stackdeploy/internal/secrets"
)

const (
	// DefaultImage is the stackdeploy container image used when none is given.
	DefaultImage = "ghcr.io/stackdeploy/stackdeploy:latest"
	// DefaultGitUsername works for token based HTTPS auth on common git hosts.
	DefaultGitUsername = "oauth2"

	ComposeFileName = "compose.yml"
	EnvFileName     = ".env"
	repoDirName     = "repo"
	serviceName     = "stackdeploy"
	dockerSocket    = "/var/run/docker.sock"
)

// Environment keys written to the .env file.
const (
	EnvGitURL       = "GITHUB_URL"
	EnvGitUsername  = "GITHUB_USERNAME"
	EnvGitToken     = "GITHUB_TOKEN"
	EnvPollInterval = "POLL_INTERVAL"
)

// Options describe the self-hosted poller.
type Options struct {
	ProjectDir   string
	GitURL       string
	GitUsername  string
	GitToken     string
	Passphrase   string
	PollInterval int
	Image        string
}

type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Image   string   `yaml:"image"`
	Restart string   `yaml:"restart"`
	Command []string `yaml:"command"`
	EnvFile []string `yaml:"env_file"`
	Volumes []string `yaml:"volumes"`
}

// Paths lists the files Write produced.
type Paths struct {
	ComposeFile string
	EnvFile     string
	RepoDir     string
}

// Validate reports every missing or invalid option. Credentials are not
// checked since the CLI collects them after validation.
func (o Options) Validate() error {
	var errs []error
	if strings.TrimSpace(o.ProjectDir) == "" {
		errs = append(errs, errors.New("project dir is required"))
	}
	if strings.TrimSpace(o.GitURL) == "" {
		errs = append(errs, errors.New("git url is required"))
	}
	if o.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("poll interval must not be negative, got %d", o.PollInterval))
	}
	return errors.Join(errs...)
}

// Write creates ProjectDir with a compose.yml and a .env. The .env holds the
// git token and the KeePass passphrase and is only readable by the owner.
func Write(opts Options) (Paths, error) {
	if err := opts.Validate(); err != nil {
		return Paths{}, err
	}
	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("failed to create %s: %w", projectDir, err)
	}

	paths := Paths{
		ComposeFile: filepath.Join(projectDir, ComposeFileName),
		EnvFile:     filepath.Join(projectDir, EnvFileName),
		RepoDir:     filepath.Join(projectDir, repoDirName),
	}

	data, err := composeYAML(opts, paths.RepoDir)
	if err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.ComposeFile, data, 0o644); err != nil {
		return Paths{}, fmt.Errorf("failed to write %s: %w", paths.ComposeFile, err)
	}

	username := opts.GitUsername
	if username == "" {
		username = DefaultGitUsername
	}
	vars := env.Vars{
		EnvGitURL:             opts.GitURL,
		EnvGitUsername:        username,
		EnvGitToken:           opts.GitToken,
		secrets.PassphraseEnv: opts.Passphrase,
		EnvPollInterval:       strconv.Itoa(opts.PollInterval),
	}
	if err := env.WriteEnvFile(paths.EnvFile, vars); err != nil {
		return Paths{}, err
	}
	return paths, nil
}

// composeYAML renders the poller service. The repository is mounted at the same
// path inside the container so compose projects started through the host docker
// socket resolve their relative paths.
func composeYAML(opts Options, repoDir string) ([]byte, error) {
	image := opts.Image
	if image == "" {
		image = DefaultImage
	}
	file := composeFile{Services: map[string]composeService{
		serviceName: {
			Image:   image,
			Restart: "unless-stopped",
			Command: []string{
				"run",
				"--repo-dir", repoDir,
				"--repo-url", "${" + EnvGitURL + "}",
				"--poll-interval", "${" + EnvPollInterval + "}",
			},
			EnvFile: []string{EnvFileName},
			Volumes: []string{
				dockerSocket + ":" + dockerSocket,
				repoDir + ":" + repoDir,
			},
		},
	}}
	data, err := yaml.Marshal(file)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ComposeFileName, err)
	}
	return data, nil
}

// RequiredEnv lists the .env keys the poller cannot start without.
var RequiredEnv = []string{EnvGitURL, EnvGitToken, secrets.PassphraseEnv}

// CheckEnvFile loads the .env of a bootstrapped project and reports the required
// keys that are missing or empty.
func CheckEnvFile(projectDir string) (env.Vars, error) {
	path := filepath.Join(projectDir, EnvFileName)
	vars, err := env.LoadEnvFile(path)
	if err != nil {
		return nil, err
	}
	missing := lo.Filter(RequiredEnv, func(key string, _ int) bool {
		return strings.TrimSpace(vars[key]) == ""
	})
	if len(missing) > 0 {
		return vars, fmt.Errorf("%s is missing %s", path, strings.Join(missing, ", "))
	}
	return vars, nil
}
