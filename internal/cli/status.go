package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the recorded state of every step.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			tracker, st, err := a.openTracker(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := tracker.Records(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", "STEP", "STATUS", "STARTED", "FINISHED", "RUN")

			for _, rec := range recs {
				status, finished := "started", "-"
				if rec.Completed() {
					status, finished = "completed", rec.FinishedAt.Format(time.RFC3339)
				}

				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					rec.Name, status, rec.StartedAt.Format(time.RFC3339), finished, orDash(rec.RunID))
			}

			return tw.Flush()
		},
	}
}
