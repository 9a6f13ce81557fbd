package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Runner executes external commands, either one after the other or chained as a pipe.
// Runs block until every process exits; there is no timeout.
type Runner struct {
	logger logrus.FieldLogger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dir    string
	env    []string
	piped  bool
}

// New creates a new runner.
func New(opts ...Option) *Runner {
	run := &Runner{
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(run)
	}

	return run
}

// Run executes the given commands.
//
// In sequential mode a failing stage stops the remaining ones from being started.
// In piped mode every stage runs at once and the whole pipe fails if any stage does.
func (r *Runner) Run(ctx context.Context, cmds ...Command) error {
	if len(cmds) == 0 {
		return ErrNoCommand
	}

	for _, cmd := range cmds {
		if cmd.Path == "" {
			return ErrEmptyPath
		}
	}

	if r.piped && len(cmds) > 1 {
		return r.runPiped(ctx, cmds)
	}

	for idx, cmd := range cmds {
		err := r.runStage(ctx, idx, cmd)
		if err != nil {
			return err
		}
	}

	return nil
}

type stage struct {
	cmd     *exec.Cmd
	writers []*logWriter
}

func (s *stage) flush() {
	for _, w := range s.writers {
		w.Flush()
	}
}

func (r *Runner) prepare(ctx context.Context, idx int, cmd Command, withStdout bool) *stage {
	log := r.logger.WithFields(logrus.Fields{"stage": idx, "cmd": cmd.Path})

	//nolint:gosec // running operator configured tools is the point
	ecmd := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	ecmd.Dir = r.dir
	if r.env != nil {
		ecmd.Env = append(os.Environ(), r.env...)
	}

	stg := &stage{cmd: ecmd}

	if withStdout {
		if r.stdout != nil {
			ecmd.Stdout = r.stdout
		} else {
			w := newLogWriter(log.WithField("stream", "stdout"))
			stg.writers = append(stg.writers, w)
			ecmd.Stdout = w
		}
	}

	if r.stderr != nil {
		ecmd.Stderr = r.stderr
	} else {
		w := newLogWriter(log.WithField("stream", "stderr"))
		stg.writers = append(stg.writers, w)
		ecmd.Stderr = w
	}

	return stg
}

func (r *Runner) runStage(ctx context.Context, idx int, cmd Command) error {
	r.logger.WithField("stage", idx).Infof("running %s", cmd)

	stg := r.prepare(ctx, idx, cmd, true)
	stg.cmd.Stdin = r.stdin

	defer stg.flush()

	err := stg.cmd.Run()
	if err != nil {
		return stageError(idx, cmd, err)
	}

	return nil
}

func (r *Runner) runPiped(ctx context.Context, cmds []Command) error {
	stages := make([]*stage, len(cmds))

	// parent copies of the pipe ends, closed once every child holds its own.
	var parentEnds []io.Closer

	closeParentEnds := func() {
		for _, c := range parentEnds {
			_ = c.Close()
		}
		parentEnds = nil
	}
	defer closeParentEnds()

	var prevOut io.Reader = r.stdin

	for idx, cmd := range cmds {
		last := idx == len(cmds)-1
		stg := r.prepare(ctx, idx, cmd, last)
		stg.cmd.Stdin = prevOut

		if !last {
			pr, pw, err := os.Pipe()
			if err != nil {
				return errors.Wrap(err, "unable to create pipe")
			}

			stg.cmd.Stdout = pw
			prevOut = pr
			parentEnds = append(parentEnds, pr, pw)
		}

		stages[idx] = stg
	}

	started := 0

	var startErr error

	for idx, stg := range stages {
		r.logger.WithField("stage", idx).Infof("running %s", cmds[idx])

		err := stg.cmd.Start()
		if err != nil {
			startErr = stageError(idx, cmds[idx], err)

			break
		}
		started++
	}

	closeParentEnds()

	stageErrs := make([]error, started)
	errGrp := &errgroup.Group{}

	for idx := 0; idx < started; idx++ {
		idx := idx
		errGrp.Go(func() error {
			defer stages[idx].flush()

			err := stages[idx].cmd.Wait()
			if err != nil {
				stageErrs[idx] = stageError(idx, cmds[idx], err)
			}

			return stageErrs[idx]
		})
	}

	// every stage must be reaped, the blamed one is picked below.
	_ = errGrp.Wait()

	if startErr != nil {
		return startErr
	}

	return firstStageError(stageErrs)
}

func stageError(idx int, cmd Command, err error) error {
	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return &ProcessFailedError{
		Stage:    idx,
		Command:  cmd,
		ExitCode: exitCode,
		Err:      err,
	}
}

// firstStageError picks the stage to blame for a failed pipe. Producers killed by SIGPIPE
// only fail because a later stage stopped reading, so they are blamed last.
func firstStageError(stageErrs []error) error {
	var sigpipe error

	for _, err := range stageErrs {
		if err == nil {
			continue
		}

		if killedBySigpipe(err) {
			if sigpipe == nil {
				sigpipe = err
			}

			continue
		}

		return err
	}

	return sigpipe
}

func killedBySigpipe(err error) bool {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false
	}

	status, ok := exitErr.Sys().(syscall.WaitStatus)

	return ok && status.Signaled() && status.Signal() == syscall.SIGPIPE
}
