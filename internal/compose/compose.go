// Package compose drives `docker compose` for a single stack directory.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/stackdeploy/stackdeploy/internal/env"
	"github.com/stackdeploy/stackdeploy/internal/logging"
)

// DefaultBinary is the docker CLI looked up in PATH.
const DefaultBinary = "docker"

var (
	upArgs   = []string{"compose", "up", "--remove-orphans", "--detach", "--wait"}
	downArgs = []string{"compose", "down", "--remove-orphans"}
)

// ExitError reports a compose invocation that ran but did not succeed.
type ExitError struct {
	Args []string
	Dir  string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v in %s: exit status %d", e.Args, e.Dir, e.Code)
}

// Client wraps docker compose execution.
type Client struct {
	Binary string
	Logger *slog.Logger
}

// NewClient constructs a compose client. An empty binary selects DefaultBinary.
func NewClient(binary string, logger *slog.Logger) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{Binary: binary, Logger: logger}
}

// Up starts the compose project in dir and waits for it to become healthy.
// vars is the complete environment of the child process.
func (c *Client) Up(ctx context.Context, dir string, vars env.Vars) error {
	return c.run(ctx, dir, vars, upArgs...)
}

// Down stops the compose project in dir and removes its orphans.
func (c *Client) Down(ctx context.Context, dir string) error {
	return c.run(ctx, dir, env.FromOS(), downArgs...)
}

// Version runs `docker compose version`.
func (c *Client) Version(ctx context.Context) error {
	return c.run(ctx, "", env.FromOS(), "compose", "version")
}

func (c *Client) run(ctx context.Context, dir string, vars env.Vars, args ...string) error {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = dir
	cmd.Env = vars.List()

	out := logging.NewWriter(c.Logger, "dir", dir)
	defer out.Flush()
	cmd.Stdout = out
	cmd.Stderr = out

	c.Logger.Debug("running compose", "binary", c.Binary, "args", args, "dir", dir)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Args: append([]string{c.Binary}, args...), Dir: dir, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %s %v in %s: %w", c.Binary, args, dir, err)
	}
	return nil
}
