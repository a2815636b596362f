// Package stack turns parsed manifests into an ordered launch sequence for one host:
// host filtering, dependency graph construction and deterministic topological ordering.
package stack

import (
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/stackdeploy/stackdeploy/internal/manifest"
)

const fallbackHost = "localhost"

// Applies reports whether host is responsible for s: its runs_on lists the wildcard
// token or the literal host name. Host names are compared case-sensitively.
func Applies(s manifest.Stack, host string) bool {
	return lo.Contains(s.RunsOn, manifest.AnyHost) || lo.Contains(s.RunsOn, host)
}

// LocalHost returns the host name stacks are filtered against.
func LocalHost() string {
	name, err := os.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return fallbackHost
	}
	return name
}
