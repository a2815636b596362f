package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/deploy"
	"github.com/stackdeploy/stackdeploy/internal/stack"
)

// newStackDeployCommand creates the "stack-deploy" subcommand that launches stacks in dependency order.
func newStackDeployCommand(opts *Options) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "stack-deploy",
		Short: "Launch every stack scheduled on this host in dependency order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			seq, err := loadSequence(opts, sel, logger)
			if err != nil {
				return err
			}
			source, err := secretSourceFor(opts, seq)
			if err != nil {
				return err
			}

			return withRunLock(opts, logger, func() error {
				driver := deploy.NewDriver(newComposeClient(opts, logger), source, logger)
				report := driver.Deploy(cmd.Context(), seq)
				recordRun(cmd.Context(), opts, logger, report, "")
				return summarize(logger, report)
			})
		},
	}
	addSelectionFlags(cmd, &sel)
	return cmd
}

// newStackStopCommand creates the "stack-stop" subcommand that tears stacks down in reverse order.
func newStackStopCommand(opts *Options) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "stack-stop",
		Short: "Stop every stack scheduled on this host in reverse dependency order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			seq, err := loadSequence(opts, sel, logger)
			if err != nil {
				return err
			}

			return withRunLock(opts, logger, func() error {
				driver := deploy.NewDriver(newComposeClient(opts, logger), nil, logger)
				report := driver.Stop(cmd.Context(), seq)
				recordRun(cmd.Context(), opts, logger, report, "")
				return summarize(logger, report)
			})
		},
	}
	addSelectionFlags(cmd, &sel)
	return cmd
}

// newStackOrderCommand creates the "stack-order" subcommand that prints the resolved order.
func newStackOrderCommand(opts *Options) *cobra.Command {
	var (
		sel  selection
		stop bool
	)
	cmd := &cobra.Command{
		Use:   "stack-order",
		Short: "Print the launch order (or stop order with --stop) without running anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			g, err := stack.LoadGraph(stack.LoadOptions{
				Root:   sel.Root,
				Files:  sel.Files,
				Host:   hostFor(opts),
				Logger: logger,
			})
			if err != nil {
				return err
			}
			seq, err := g.Order()
			if err != nil {
				return err
			}
			if stop {
				seq = seq.Reverse()
			}
			logger.Debug("resolved order", "stacks", g.Len(), "edges", len(g.Edges()), "stop", stop)

			out := cmd.OutOrStdout()
			for i, s := range seq {
				line := fmt.Sprintf("%d\t%s\t%s", i+1, s.Name, s.Origin.String())
				if deps := g.DependenciesOf(s.Name); len(deps) > 0 {
					line += "\t" + strings.Join(deps, ",")
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addSelectionFlags(cmd, &sel)
	cmd.Flags().BoolVar(&stop, "stop", false, "Print the stop order instead of the launch order")
	return cmd
}
