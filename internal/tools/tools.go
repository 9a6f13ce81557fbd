// Package tools wraps the external programs used by import tasks: the bookdata conversion
// tool and psql. Every invocation goes through a process runner, so a failing tool surfaces
// as a *process.ProcessFailedError naming the exit code.
package tools

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/bookimport/internal/config"
	"github.com/askiada/bookimport/internal/sqlscript"
	"github.com/askiada/bookimport/pkg/process"
)

var (
	ErrConfigMustBeSet = errors.New("config must be set")
	ErrRunnerMustBeSet = errors.New("runner must be set")
	ErrNoScriptRunner  = errors.New("staged scripts need a database connection")
)

// ErrBookkeepingFailed marks a failure to record input files. It is logged, never returned
// by a task.
var ErrBookkeepingFailed = errors.New("bookkeeping failed")

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, cmds ...process.Command) error
}

// ScriptRunner executes a staged SQL script.
type ScriptRunner interface {
	Run(ctx context.Context, script *sqlscript.Script) (sqlscript.Result, error)
}

type Toolbox struct {
	cfg     *config.Config
	runner  Runner
	scripts ScriptRunner
	logger  logrus.FieldLogger
}

// New creates a toolbox. scripts may be nil, in which case staged scripts cannot run.
func New(cfg *config.Config, runner Runner, scripts ScriptRunner, logger logrus.FieldLogger) (*Toolbox, error) {
	if cfg == nil {
		return nil, ErrConfigMustBeSet
	}

	if runner == nil {
		return nil, ErrRunnerMustBeSet
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Toolbox{cfg: cfg, runner: runner, scripts: scripts, logger: logger}, nil
}

// MARCTarget is where parse-marc loads MARC fields.
type MARCTarget struct {
	Schema string
	Table  string
	// Truncate empties the table before loading.
	Truncate bool
	// LineMode reads one MARC-XML record per line.
	LineMode bool
}

// ParseMARC loads MARC-XML files into a field table.
func (t *Toolbox) ParseMARC(ctx context.Context, target MARCTarget, files ...string) error {
	args := []string{"parse-marc", "--db-schema", target.Schema, "-t", target.Table}
	if target.Truncate {
		args = append(args, "--truncate")
	}

	if target.LineMode {
		args = append(args, "--line-mode")
	}

	return t.runner.Run(ctx, process.Cmd(t.cfg.BookTool, args, files))
}

// ImportNTriples truncates and loads an N-Triples archive into the tables named by prefix.
func (t *Toolbox) ImportNTriples(ctx context.Context, schema, prefix, file string) error {
	return t.runner.Run(ctx, process.Cmd(t.cfg.BookTool,
		"import-ntriples", "--db-schema", schema, "--prefix", prefix, "--truncate", file))
}

// PSQL runs a script from the script directory. An unstaged script runs through psql as a
// single transaction stopping at the first error. A staged script runs chunk by chunk, each
// chunk checked on its own.
func (t *Toolbox) PSQL(ctx context.Context, script string, staged bool) error {
	path := t.cfg.Script(script)
	log := t.logger.WithField("script", script)

	if !staged {
		log.Info("running script through psql")

		return t.runner.Run(ctx, process.Cmd(t.cfg.PSQL,
			"-v", "ON_ERROR_STOP=on", "--single-transaction", "-d", t.cfg.DBURL, "-f", path))
	}

	if t.scripts == nil {
		return errors.Wrap(ErrNoScriptRunner, script)
	}

	parsed, err := sqlscript.Load(path)
	if err != nil {
		return err
	}

	log.WithField("chunks", len(parsed.Chunks)).Info("running staged script")

	res, err := t.scripts.Run(ctx, parsed)
	if err != nil {
		return err
	}

	if res.Tolerated > 0 {
		log.Warnf("%d chunks failed with allowed conditions", res.Tolerated)
	}

	return nil
}

// RecordFiles hashes input files into the bookkeeping tables. A failure is logged and
// otherwise ignored.
func (t *Toolbox) RecordFiles(ctx context.Context, files ...string) {
	log := t.logger.WithField("files", len(files))
	if len(files) == 0 {
		log.Warn("no file to record")

		return
	}

	err := t.runner.Run(ctx, process.Cmd(t.cfg.BookTool, "hash", files))
	if err != nil {
		log.WithError(errors.Wrap(ErrBookkeepingFailed, err.Error())).
			WithField("kind", "BookkeepingFailed").
			Warn("unable to record input files")

		return
	}

	log.Info("input files recorded")
}
