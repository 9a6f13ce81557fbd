package process

import (
	"io"

	"github.com/sirupsen/logrus"
)

type Option func(r *Runner)

// Piped chains the commands so the output of each stage feeds the next one.
func Piped() Option {
	return func(r *Runner) {
		r.piped = true
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithDir sets the working directory of every process.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv adds KEY=VALUE entries on top of the current environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithStdin feeds stdin to the first stage.
func WithStdin(stdin io.Reader) Option {
	return func(r *Runner) {
		r.stdin = stdin
	}
}

// WithStdout sends the output of the last stage to w instead of the logger.
func WithStdout(w io.Writer) Option {
	return func(r *Runner) {
		r.stdout = w
	}
}

// WithStderr sends the error output of every stage to w instead of the logger.
func WithStderr(w io.Writer) Option {
	return func(r *Runner) {
		r.stderr = w
	}
}
