package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/askiada/bookimport/pkg/pipeline"
	"github.com/askiada/bookimport/pkg/pipeline/drawer"
	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type runOptions struct {
	params      pipeline.Params
	withPrereqs bool
	failIfDone  bool
	drawFile    string
	metricsFile string
}

func newRunCommand(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <task>...",
		Short: "Run import tasks.",
		Long: `run executes the named tasks and the tasks they depend on, in dependency order.

Tasks whose step already completed are skipped unless --force is given. Prerequisite
steps must be complete already, or be produced in the same run with --with-prereqs.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.params.Force, "force", "f", false, "rerun requested tasks even if already completed")
	flags.BoolVar(&opts.params.NoConvert, "no-convert", false, "skip the conversion tool and only mark the step finished")
	flags.BoolVar(&opts.params.ConvertOnly, "convert-only", false, "run the conversion tool, overriding --no-convert")
	flags.StringVar(&opts.params.Date, "date", pipeline.DefaultDate, "VIAF dump date")
	flags.BoolVar(&opts.withPrereqs, "with-prereqs", false, "also run the tasks producing prerequisite steps")
	flags.BoolVar(&opts.failIfDone, "fail-if-done", false, "fail instead of skipping requested tasks already completed")
	flags.StringVar(&opts.drawFile, "draw", "", "write the run graph in DOT format to this file")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics in text format to this file")

	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string, opts *runOptions) error {
	ctx := commandContext(cmd)

	tracker, st, err := a.openTracker(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tb, conn, err := a.toolbox()
	if err != nil {
		return err
	}
	defer conn.Close()

	reg, err := a.registry(tb)
	if err != nil {
		return err
	}

	msr := measure.NewDefaultMeasure()

	var exporters []measure.Exporter
	if opts.metricsFile != "" {
		exporters = append(exporters, measure.NewPrometheus(opts.metricsFile))
	}

	runOpts := []model.PipelineOption{measure.PipelineMeasure(msr, exporters...)}
	if opts.drawFile != "" {
		runOpts = append(runOpts, drawer.PipelineDrawer(drawer.NewDOTDrawer(opts.drawFile), msr))
	}

	pipe, err := pipeline.New(reg, tracker, pipeline.WithLogger(a.logger), pipeline.WithRunOptions(runOpts...))
	if err != nil {
		return err
	}

	runErr := pipe.Run(ctx, pipeline.Request{
		Tasks:       args,
		Params:      opts.params,
		WithPrereqs: opts.withPrereqs,
		FailIfDone:  opts.failIfDone,
	})

	printSummary(cmd, msr)

	return runErr
}

func printSummary(cmd *cobra.Command, msr measure.Measure) {
	metrics := msr.AllMetrics()

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}

	sort.Strings(names)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n", "TASK", "STATUS", "DURATION")

	for _, name := range names {
		mt := metrics[name]

		duration := "-"
		if mt.Status().Done() {
			duration = mt.GetTotalDuration().String()
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, mt.Status(), duration)
	}

	tw.Flush()
}
