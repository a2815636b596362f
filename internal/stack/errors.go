package stack

import (
	"fmt"
	"strings"

	"github.com/stackdeploy/stackdeploy/internal/manifest"
)

// Scope describes where the candidate manifests came from.
// It only changes diagnostics.
type Scope int

const (
	// ScopeScan means the manifests were discovered below a search root.
	ScopeScan Scope = iota
	// ScopeFiles means the manifests were listed explicitly.
	ScopeFiles
)

// DuplicateStackError reports two manifests for the same host sharing a name.
type DuplicateStackError struct {
	Name   string
	First  manifest.Origin
	Second manifest.Origin
}

func (e *DuplicateStackError) Error() string {
	return fmt.Sprintf("multiple stacks have the same name %s (%s and %s)", e.Name, e.First, e.Second)
}

// MissingDependencyError reports a depends_on entry with no matching stack on this host.
type MissingDependencyError struct {
	Stack      string
	Dependency string
	Scope      Scope
}

func (e *MissingDependencyError) Error() string {
	if e.Scope == ScopeFiles {
		return fmt.Sprintf("%s depends on %s, but %s is not present in any of the specified stack deploy files",
			e.Stack, e.Dependency, e.Dependency)
	}
	return fmt.Sprintf("%s depends on %s, but %s is not present in any stack deploy file",
		e.Stack, e.Dependency, e.Dependency)
}

// CycleError reports a dependency cycle. Node is always part of Path.
type CycleError struct {
	Node string
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("dependency cycle detected for %s", e.Node)
	}
	parts := append(append([]string(nil), e.Path...), e.Path[0])
	return fmt.Sprintf("dependency cycle detected for %s: %s", e.Node, strings.Join(parts, " -> "))
}
