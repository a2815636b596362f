package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/secrets"
)

// newGetSecretCommand creates the "get-secret" subcommand that prints one resolved secret.
func newGetSecretCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get-secret PATH",
		Short: "Print the value of a secret path such as Group/Entry/Field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := LoggerFromContext(cmd.Context())
			if opts.KDBX == "" {
				return errors.New("no --kdbx file was specified")
			}
			tree, err := openSecrets(opts, opts.KDBX)
			if err != nil {
				return err
			}
			value, ok := secrets.Resolve(tree, args[0])
			if !ok {
				logger.Error("secret not found", "path", args[0], "kdbx", opts.KDBX)
				return fmt.Errorf("%s not found in %s", args[0], opts.KDBX)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
}
