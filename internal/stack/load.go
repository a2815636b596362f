package stack

import (
	"fmt"
	"log/slog"

	"github.com/stackdeploy/stackdeploy/internal/logging"
	"github.com/stackdeploy/stackdeploy/internal/manifest"
)

// LoadOptions selects the manifests to load and the host to load them for.
type LoadOptions struct {
	// Root is searched recursively for manifests when Files is empty.
	Root string
	// Files lists manifests explicitly and disables the search.
	Files []string
	// Host is the local host identity used by the host filter.
	Host string
	// Logger receives the filtering decisions.
	Logger *slog.Logger
}

// LoadGraph parses the selected manifests, keeps the ones scheduled on opts.Host and
// returns their validated dependency graph.
func LoadGraph(opts LoadOptions) (*Graph, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	scope := ScopeFiles
	paths := opts.Files
	if len(paths) == 0 {
		scope = ScopeScan
		found, err := manifest.Discover(opts.Root)
		if err != nil {
			return nil, err
		}
		paths = found
	}
	logger.Debug("loading stack manifests", "count", len(paths), "host", opts.Host)

	parsed, err := manifest.ParseAll(paths)
	if err != nil {
		return nil, err
	}

	accepted := make([]manifest.Stack, 0, len(parsed))
	for _, s := range parsed {
		if !Applies(s, opts.Host) {
			logger.Info("skipping stack: host not in runs_on",
				"stack", s.Name, "manifest", s.Origin.String(), "host", opts.Host, "runs_on", s.RunsOn)
			continue
		}
		accepted = append(accepted, s)
	}

	return Build(accepted, scope)
}

// LoadStacks is LoadGraph followed by Order: the accepted stacks in launch order.
// Any structural problem aborts the whole load.
func LoadStacks(opts LoadOptions) (Sequence, error) {
	g, err := LoadGraph(opts)
	if err != nil {
		return nil, err
	}
	seq, err := g.Order()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger.Debug("resolved launch order", "order", fmt.Sprint(seq.Names()))
	return seq, nil
}
