package stack

import (
	"sort"

	"github.com/stackdeploy/stackdeploy/internal/manifest"
)

// Sequence is an ordered list of stacks. A launch sequence lists every dependency
// before the stacks that depend on it.
type Sequence []manifest.Stack

// Names returns the stack names in sequence order.
func (s Sequence) Names() []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = st.Name
	}
	return out
}

// Reverse returns a new sequence with the elements in reverse order.
// The reverse of a launch sequence is its teardown sequence.
func (s Sequence) Reverse() Sequence {
	out := make(Sequence, len(s))
	for i, st := range s {
		out[len(s)-1-i] = st
	}
	return out
}

// Order returns the launch sequence for g: dependencies first, ties broken by
// ascending name. A cycle yields a *CycleError and no sequence.
func (g *Graph) Order() (Sequence, error) {
	pending := make(map[string]int, len(g.stacks))
	dependents := make(map[string][]string, len(g.stacks))
	for _, name := range g.Names() {
		pending[name] = len(g.deps[name])
		for _, dep := range g.deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range g.Names() {
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	out := make(Sequence, 0, len(g.stacks))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, g.stacks[name])

		for _, dependent := range dependents[name] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(out) != len(g.stacks) {
		return nil, g.cycleError(pending)
	}
	return out, nil
}

func insertSorted(list []string, name string) []string {
	i := sort.SearchStrings(list, name)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = name
	return list
}

// cycleError walks the nodes Kahn's algorithm could not release and reports the
// first cycle found, starting from the smallest stuck name.
func (g *Graph) cycleError(pending map[string]int) *CycleError {
	var stuck []string
	for _, name := range g.Names() {
		if pending[name] > 0 {
			stuck = append(stuck, name)
		}
	}

	const (
		unvisited = iota
		inProgress
		done
	)
	mark := make(map[string]int, len(stuck))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(name string) bool {
		mark[name] = inProgress
		stack = append(stack, name)
		for _, dep := range g.deps[name] {
			if pending[dep] == 0 {
				continue
			}
			switch mark[dep] {
			case inProgress:
				for i := range stack {
					if stack[i] == dep {
						cycle = append([]string(nil), stack[i:]...)
						break
					}
				}
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		mark[name] = done
		return false
	}

	for _, name := range stuck {
		if mark[name] == unvisited && visit(name) {
			break
		}
	}
	if len(cycle) == 0 {
		return &CycleError{Node: stuck[0]}
	}
	return &CycleError{Node: cycle[0], Path: cycle}
}
