package cli

import (
	"github.com/spf13/cobra"
)

func newResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <step>...",
		Short: "Forget the recorded state of steps.",
		Long: `reset deletes the records of the named steps, so their tasks run again and the
tasks requiring them wait for them.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			tracker, st, err := a.openTracker(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, step := range args {
				err := tracker.Reset(ctx, step)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}
