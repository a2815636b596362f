package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackdeploy/stackdeploy/internal/state"
)

// newHistoryCommand creates the "history" subcommand that lists recorded runs.
func newHistoryCommand(opts *Options) *cobra.Command {
	var (
		limit   int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deploy and stop runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.HistoryDB == "" {
				return errors.New("--history-db is required")
			}
			store, err := state.Open(cmd.Context(), opts.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tACTION\tHOST\tCOMMIT\tSTARTED\tDURATION\tSTACKS\tFAILED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
					run.ID, run.Action, run.Host, shortCommit(run.Commit),
					run.StartedAt.UTC().Format(time.RFC3339),
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
					len(run.Stacks), run.Failed())
				if !verbose {
					continue
				}
				for _, st := range run.Stacks {
					fmt.Fprintf(tw, "\t%s\t%s\t%s\t\t\t\t\n", st.Status, st.Name, st.Error)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-stack outcomes")
	return cmd
}

func shortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	if hash == "" {
		return "-"
	}
	return hash
}
