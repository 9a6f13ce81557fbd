package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the import tasks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(nil)
			if err != nil {
				return err
			}

			tasks, err := reg.Tasks()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", "TASK", "STEP", "DEPS", "PREREQS", "DESCRIPTION")

			for _, task := range tasks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					task.Name, orDash(task.Step), orDash(strings.Join(task.Deps, ",")),
					orDash(strings.Join(task.Prereqs, ",")), task.Help)
			}

			return tw.Flush()
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
