package cli

import (
	"github.com/spf13/cobra"

	"github.com/askiada/bookimport/pkg/pipeline/drawer"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

func newGraphCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the task graph in DOT format, coloured by step state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			tracker, st, err := a.openTracker(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := a.registry(nil)
			if err != nil {
				return err
			}

			tasks, err := reg.Tasks()
			if err != nil {
				return err
			}

			d := drawer.NewDOTDrawer(output)

			for _, task := range tasks {
				err := d.AddTask(task.Name)
				if err != nil {
					return err
				}

				if task.Step == "" {
					continue
				}

				done, err := tracker.Completed(ctx, task.Step)
				if err != nil {
					return err
				}

				if done {
					err = d.SetStatus(task.Name, model.StatusCompleted)
					if err != nil {
						return err
					}
				}
			}

			for _, task := range tasks {
				for _, dep := range task.Deps {
					err := d.AddLink(dep, task.Name, false)
					if err != nil {
						return err
					}
				}

				for _, step := range task.Prereqs {
					producer, _ := reg.Producer(step)
					if task.DependsOn(producer) {
						continue
					}

					err := d.AddLink(producer, task.Name, true)
					if err != nil {
						return err
					}
				}
			}

			if output == "" {
				return d.WriteTo(cmd.OutOrStdout())
			}

			return d.Draw()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the graph to this file instead of the standard output")

	return cmd
}
