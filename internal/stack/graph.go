package stack

import (
	"sort"

	"github.com/stackdeploy/stackdeploy/internal/manifest"
)

// Graph is the must-start-before relation over the stacks accepted on one host.
// Edges point from a dependent to each of its dependencies.
type Graph struct {
	stacks map[string]manifest.Stack
	deps   map[string][]string
}

// Build validates stacks and builds their dependency graph. Stacks must already be
// host filtered: names must be unique and every dependency must be among them.
func Build(stacks []manifest.Stack, scope Scope) (*Graph, error) {
	g := &Graph{
		stacks: make(map[string]manifest.Stack, len(stacks)),
		deps:   make(map[string][]string, len(stacks)),
	}
	for _, s := range stacks {
		if prev, ok := g.stacks[s.Name]; ok {
			return nil, &DuplicateStackError{Name: s.Name, First: prev.Origin, Second: s.Origin}
		}
		g.stacks[s.Name] = s
	}

	for _, name := range g.Names() {
		deps := g.stacks[name].DependencyNames()
		for _, dep := range deps {
			if _, ok := g.stacks[dep]; !ok {
				return nil, &MissingDependencyError{Stack: name, Dependency: dep, Scope: scope}
			}
		}
		g.deps[name] = deps
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.stacks)
}

// Names returns all node names in ascending order.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.stacks))
	for name := range g.stacks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Stack returns the descriptor for name.
func (g *Graph) Stack(name string) (manifest.Stack, bool) {
	s, ok := g.stacks[name]
	return s, ok
}

// DependenciesOf returns the direct dependencies of name, sorted.
func (g *Graph) DependenciesOf(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Edges returns every dependent -> dependency pair, sorted.
func (g *Graph) Edges() [][2]string {
	var edges [][2]string
	for _, from := range g.Names() {
		for _, to := range g.deps[from] {
			edges = append(edges, [2]string{from, to})
		}
	}
	return edges
}
