package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/deploy"
	"github.com/stackdeploy/stackdeploy/internal/manifest"
	"github.com/stackdeploy/stackdeploy/internal/secrets"
	"github.com/stackdeploy/stackdeploy/internal/stack"
)

// selection holds the manifest selection flags shared by the stack commands.
type selection struct {
	Root  string
	Files []string
}

func addSelectionFlags(cmd *cobra.Command, sel *selection) {
	cmd.Flags().StringVar(&sel.Root, "root", ".", "Directory searched recursively for stack-deploy manifests")
	cmd.Flags().StringArrayVar(&sel.Files, "file", nil, "Explicit stack-deploy manifest (repeatable, disables the search)")
}

// hostFor resolves the host identity matched against runs_on.
func hostFor(opts *Options) string {
	if opts.Hostname != "" {
		return opts.Hostname
	}
	return stack.LocalHost()
}

func loadSequence(opts *Options, sel selection, logger *slog.Logger) (stack.Sequence, error) {
	return stack.LoadStacks(stack.LoadOptions{
		Root:   sel.Root,
		Files:  sel.Files,
		Host:   hostFor(opts),
		Logger: logger,
	})
}

// openSecrets opens the KeePass database at path using the configured passphrase sources.
func openSecrets(opts *Options, path string) (*secrets.Tree, error) {
	passphrase, err := secrets.Passphrase(secrets.PassphraseOptions{
		Flag:        opts.Password,
		Env:         os.Getenv(secrets.PassphraseEnv),
		Interactive: opts.Interactive,
	})
	if err != nil {
		return nil, err
	}
	return secrets.OpenKDBX(path, passphrase)
}

// secretSourceFor opens --kdbx when any stack in seq declares secrets. A sequence
// without secrets needs no database.
func secretSourceFor(opts *Options, seq stack.Sequence) (deploy.SecretSource, error) {
	needsSecrets := lo.SomeBy(seq, func(s manifest.Stack) bool { return len(s.SecretEnv) > 0 })
	if !needsSecrets {
		return nil, nil
	}
	if opts.KDBX == "" {
		return nil, errors.New("no --kdbx file was specified")
	}
	tree, err := openSecrets(opts, opts.KDBX)
	if err != nil {
		return nil, err
	}
	return tree, nil
}
