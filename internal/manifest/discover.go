package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FilePattern matches manifest file names anywhere below a search root.
const FilePattern = "**/stack-deploy.{toml,yaml,yml}"

// Discover returns the manifests below root in lexical order. Paths are joined onto root.
// Anything below a .git directory is ignored.
func Discover(root string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat search root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("search root %q is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), FilePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("search %s for %s: %w", root, FilePattern, err)
	}

	out := make([]string, 0, len(matches))
	for _, rel := range matches {
		if inGitDir(rel) {
			continue
		}
		out = append(out, filepath.Join(root, filepath.FromSlash(rel)))
	}
	sort.Strings(out)
	return out, nil
}

func inGitDir(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if part == ".git" {
			return true
		}
	}
	return false
}

// ParseAll parses every path in order and stops at the first failure.
func ParseAll(paths []string) ([]Stack, error) {
	out := make([]Stack, 0, len(paths))
	for _, p := range paths {
		st, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
