// Package cli holds the bookimport command line.
package cli

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/askiada/bookimport/internal/config"
	"github.com/askiada/bookimport/internal/datasets"
	"github.com/askiada/bookimport/internal/sqlscript"
	"github.com/askiada/bookimport/internal/store"
	"github.com/askiada/bookimport/internal/tools"
	"github.com/askiada/bookimport/pkg/pipeline"
	"github.com/askiada/bookimport/pkg/process"
)

// app is the state shared by every subcommand once the configuration is loaded.
type app struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger logrus.FieldLogger
	runID  string
}

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{
		cfg:    config.Default(),
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rc := &cobra.Command{
		Use:   "bookimport",
		Short: "Import Library of Congress and VIAF bibliographic data into PostgreSQL.",
		Long: `bookimport loads the Library of Congress MDS and ID datasets and the VIAF cluster
dump into PostgreSQL, then indexes them.

Each import task records its progress in a state store, so running a task again
skips work already completed unless --force is given.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}

			err = a.cfg.Validate()
			if err != nil {
				return errors.Wrap(err, "invalid configuration")
			}

			logger, err := a.cfg.NewLogger(a.stderr)
			if err != nil {
				return err
			}

			a.runID = uuid.New().String()
			a.logger = logger.WithField("run_id", a.runID)
			a.logger.WithField("config", a.cfg.String()).Debug("configuration loaded")

			return nil
		},
	}

	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	a.cfg.Flags(rc.PersistentFlags())

	rc.AddCommand(newRunCommand(a))
	rc.AddCommand(newListCommand(a))
	rc.AddCommand(newStatusCommand(a))
	rc.AddCommand(newResetCommand(a))
	rc.AddCommand(newGraphCommand(a))
	rc.AddCommand(newConfigCommand(a))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)

	return rc
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}

// openTracker opens the state store. The caller closes the returned store.
func (a *app) openTracker(ctx context.Context) (*store.Tracker, store.Store, error) {
	st, err := store.Open(ctx, a.cfg.StateStoreDSN())
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to open state store")
	}

	tracker, err := store.NewTracker(st, store.WithLogger(a.logger), store.WithRunID(a.runID))
	if err != nil {
		_ = st.Close()

		return nil, nil, err
	}

	return tracker, st, nil
}

// toolbox wires the external tools. The returned database connection must be closed.
func (a *app) toolbox() (*tools.Toolbox, *sqlscript.DBConn, error) {
	runner := process.New(
		process.WithLogger(a.logger),
		process.WithEnv("DB_URL="+a.cfg.DBURL),
	)

	conn, err := sqlscript.OpenDB(a.cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}

	tb, err := tools.New(a.cfg, runner, sqlscript.NewExecutor(conn, a.logger), a.logger)
	if err != nil {
		_ = conn.Close()

		return nil, nil, err
	}

	return tb, conn, nil
}

// registry builds the task registry. tb may be nil when no task is going to run.
func (a *app) registry(tb datasets.Tools) (*pipeline.Registry, error) {
	return datasets.New(a.cfg, tb, a.logger).Registry()
}
