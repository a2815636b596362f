// Package deploy applies an ordered stack sequence through a compose launcher.
//
// A failing stack never aborts the sequence: the failure is logged, recorded in
// the Report and the driver moves on to the next stack.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stackdeploy/stackdeploy/internal/env"
	"github.com/stackdeploy/stackdeploy/internal/logging"
	"github.com/stackdeploy/stackdeploy/internal/manifest"
	"github.com/stackdeploy/stackdeploy/internal/stack"
)

// Action names what a Report did.
type Action string

const (
	ActionDeploy Action = "deploy"
	ActionStop   Action = "stop"
)

// Launcher starts and stops a compose project located in a directory.
type Launcher interface {
	Up(ctx context.Context, dir string, vars env.Vars) error
	Down(ctx context.Context, dir string) error
}

// SecretSource resolves a slash separated secret path.
type SecretSource interface {
	Resolve(path string) (string, bool)
}

// MissingSecretsError lists the secret variables of a stack that could not be resolved.
type MissingSecretsError struct {
	Stack string
	Vars  []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("stack %s: unresolved secrets for %s", e.Stack, strings.Join(e.Vars, ", "))
}

// Outcome is the result of one stack within a run.
type Outcome struct {
	Stack    string
	Origin   manifest.Origin
	Err      error
	Started  time.Time
	Finished time.Time
}

// Report collects per-stack outcomes in execution order.
type Report struct {
	Action   Action
	Outcomes []Outcome
}

// Failed returns the outcomes that carry an error.
func (r Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins all per-stack errors, or returns nil when every stack succeeded.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s: %w", r.Action, o.Stack, o.Err))
	}
	return errors.Join(errs...)
}

// Driver executes sequences.
type Driver struct {
	Launcher Launcher
	Secrets  SecretSource
	Logger   *slog.Logger

	now func() time.Time
}

// NewDriver constructs a Driver. secrets may be nil, in which case every
// declared secret is reported as unresolved.
func NewDriver(launcher Launcher, secrets SecretSource, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Driver{Launcher: launcher, Secrets: secrets, Logger: logger, now: time.Now}
}

// Deploy brings every stack up in sequence order.
func (d *Driver) Deploy(ctx context.Context, seq stack.Sequence) Report {
	return d.walk(ctx, ActionDeploy, seq, d.up)
}

// Stop tears every stack down in reverse sequence order.
func (d *Driver) Stop(ctx context.Context, seq stack.Sequence) Report {
	return d.walk(ctx, ActionStop, seq.Reverse(), func(ctx context.Context, s manifest.Stack) error {
		return d.Launcher.Down(ctx, s.Origin.Dir())
	})
}

func (d *Driver) walk(ctx context.Context, action Action, seq stack.Sequence, apply func(context.Context, manifest.Stack) error) Report {
	report := Report{Action: action, Outcomes: make([]Outcome, 0, len(seq))}
	for _, s := range seq {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Stack: s.Name, Origin: s.Origin, Err: err})
			continue
		}

		logger := d.Logger.With("stack", s.Name, "action", string(action))
		logger.Info("applying stack", "dir", s.Origin.Dir())

		o := Outcome{Stack: s.Name, Origin: s.Origin, Started: d.clock()}
		o.Err = apply(ctx, s)
		o.Finished = d.clock()
		if o.Err != nil {
			logger.Error("stack failed", "err", o.Err)
		} else {
			logger.Info("stack done", "duration", o.Finished.Sub(o.Started))
		}
		report.Outcomes = append(report.Outcomes, o)
	}
	return report
}

func (d *Driver) up(ctx context.Context, s manifest.Stack) error {
	vars, err := d.secretEnv(s)
	if err != nil {
		return err
	}
	return d.Launcher.Up(ctx, s.Origin.Dir(), env.Merge(env.FromOS(), vars))
}

// secretEnv resolves the declared secret variables of s. Every miss is logged;
// the stack is not started when any secret is missing.
func (d *Driver) secretEnv(s manifest.Stack) (env.Vars, error) {
	vars := env.Vars{}
	var missing []string
	for _, name := range s.SecretVars() {
		path := s.SecretEnv[name]
		var (
			value string
			ok    bool
		)
		if d.Secrets != nil {
			value, ok = d.Secrets.Resolve(path)
		}
		if !ok {
			d.Logger.Error("secret not found", "stack", s.Name, "var", name, "path", path)
			missing = append(missing, name)
			continue
		}
		vars[name] = value
	}
	if len(missing) > 0 {
		return nil, &MissingSecretsError{Stack: s.Name, Vars: missing}
	}
	return vars, nil
}

func (d *Driver) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}
