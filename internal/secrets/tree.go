// Package secrets exposes an already-decrypted credential store as a read-only tree and
// resolves slash-delimited, case-insensitive paths against it.
//
// A path names the groups from the root down, then an entry title, then a field:
//
//	Database/infra/postgres/password
//
// Resolved values only ever live in memory; nothing in this package writes them out.
package secrets

import (
	"sort"
	"strings"
)

// Node is either a *Group or an *Entry.
type Node interface {
	node()
}

// Group is a named container of groups and entries.
type Group struct {
	Name     string
	Children []Node
}

// Entry is a titled record holding named string fields.
type Entry struct {
	Title  string
	Fields map[string]string
}

func (*Group) node() {}
func (*Entry) node() {}

// Tree is a credential store opened for the lifetime of one invocation.
// It is never written to, so it can be shared and queried repeatedly.
type Tree struct {
	Root *Group
}

// NewTree wraps root.
func NewTree(root *Group) *Tree {
	return &Tree{Root: root}
}

// Resolve looks up path in t. See Resolve.
func (t *Tree) Resolve(path string) (string, bool) {
	return Resolve(t, path)
}

// Resolve returns the field value named by path, or false when the path does not lead
// to exactly one entry field. A missing value is an ordinary outcome, not an error.
//
// Every segment is matched case-insensitively. The path must end exactly two segments
// past the last group: the entry title and then the field name.
func Resolve(tree *Tree, path string) (string, bool) {
	if tree == nil || tree.Root == nil {
		return "", false
	}
	return resolveNode(tree.Root, strings.Split(path, "/"))
}

func resolveNode(n Node, path []string) (string, bool) {
	if len(path) == 0 {
		return "", false
	}
	switch n := n.(type) {
	case *Group:
		if !strings.EqualFold(n.Name, path[0]) {
			return "", false
		}
		for _, child := range n.Children {
			if v, ok := resolveNode(child, path[1:]); ok {
				return v, true
			}
		}
		return "", false
	case *Entry:
		if len(path) != 2 || !strings.EqualFold(n.Title, path[0]) {
			return "", false
		}
		return n.field(path[1])
	default:
		return "", false
	}
}

// field prefers an exact key, then the first case-insensitive match in key order.
func (e *Entry) field(name string) (string, bool) {
	if v, ok := e.Fields[name]; ok {
		return v, true
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return e.Fields[k], true
		}
	}
	return "", false
}
