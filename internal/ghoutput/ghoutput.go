// Package ghoutput publishes run results as GitHub Actions step outputs.
package ghoutput

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/stackdeploy/stackdeploy/internal/deploy"
)

// OutputEnv names the file GitHub Actions collects step outputs from.
const OutputEnv = "GITHUB_OUTPUT"

// Values renders report as step outputs.
func Values(report deploy.Report) map[string]string {
	names := func(outcomes []deploy.Outcome) string {
		return strings.Join(lo.Map(outcomes, func(o deploy.Outcome, _ int) string { return o.Stack }), ",")
	}
	failed := report.Failed()
	return map[string]string{
		"action":       string(report.Action),
		"stacks":       names(report.Outcomes),
		"failed":       names(failed),
		"failed_count": strconv.Itoa(len(failed)),
	}
}

// Publish appends values to $GITHUB_OUTPUT. Outside of Actions it does nothing.
func Publish(values map[string]string) error {
	return Write(strings.TrimSpace(os.Getenv(OutputEnv)), values)
}

// Write appends values to the output file at path in key order. An empty path is a no-op.
func Write(path string, values map[string]string) error {
	if path == "" || len(values) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	keys := lo.Filter(lo.Keys(values), func(k string, _ int) bool { return strings.TrimSpace(k) != "" })
	slices.Sort(keys)
	for _, key := range keys {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, sanitize(values[key])); err != nil {
			return err
		}
	}
	return nil
}

func sanitize(value string) string {
	value = strings.ReplaceAll(value, "\r", "%0D")
	return strings.ReplaceAll(value, "\n", "%0A")
}
