// Package manifest contains the loader and strongly typed model for stack-deploy manifests.
//
// Every manifest describes exactly one stack: a docker compose project living in the
// manifest's directory, the stacks it must start after, the environment values it needs
// from the credential store and the hosts it runs on.
package manifest

import (
	"path/filepath"
	"sort"

	"github.com/samber/lo"
)

// AnyHost is the runs_on token that matches every host.
const AnyHost = "*"

// Origin identifies where a stack descriptor was loaded from.
type Origin string

// String returns the manifest path.
func (o Origin) String() string {
	return string(o)
}

// Dir returns the directory containing the manifest.
func (o Origin) Dir() string {
	return filepath.Dir(string(o))
}

// Stack is one parsed manifest. It is never mutated after parsing.
type Stack struct {
	// Name uniquely identifies the stack among the stacks scheduled on a host.
	Name string
	// DependsOn lists stacks that must be started before this one.
	DependsOn []string
	// SecretEnv maps an environment variable name to a credential store path.
	SecretEnv map[string]string
	// RunsOn lists the host names this stack is scheduled on; AnyHost matches all of them.
	RunsOn []string
	// Origin is the manifest location.
	Origin Origin
}

// DependencyNames returns DependsOn without duplicates, sorted.
func (s Stack) DependencyNames() []string {
	out := lo.Uniq(s.DependsOn)
	sort.Strings(out)
	return out
}

// SecretVars returns the SecretEnv variable names in sorted order.
func (s Stack) SecretVars() []string {
	keys := lo.Keys(s.SecretEnv)
	sort.Strings(keys)
	return keys
}
