package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// newDoctorCommand creates the "doctor" subcommand that runs environment preflight checks.
func newDoctorCommand(opts *Options) *cobra.Command {
	var projectDir string
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment preflight checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			if err := runDoctorChecks(ctx, logger, opts, projectDir); err != nil {
				return err
			}

			logger.Info("doctor checks completed successfully", "host", hostFor(opts))
			return nil
		},
	}
	cmd.Flags().StringVar(&projectDir, "project-dir", "", "Bootstrapped poller project whose .env should be checked")
	return cmd
}
