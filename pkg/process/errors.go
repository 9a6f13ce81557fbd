package process

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrProcessFailed matches every *ProcessFailedError.
	ErrProcessFailed = errors.New("process failed")
	ErrNoCommand     = errors.New("at least one command must be set")
	ErrEmptyPath     = errors.New("command path must be set")
)

// ProcessFailedError reports a pipeline stage that did not exit successfully.
// ExitCode is -1 when the process could not be started or was killed by a signal.
type ProcessFailedError struct {
	Err      error
	Command  Command
	Stage    int
	ExitCode int
}

func (e *ProcessFailedError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("stage %d (%s) failed: %v", e.Stage, e.Command.Path, e.Err)
	}

	return fmt.Sprintf("stage %d (%s) exited with code %d", e.Stage, e.Command.Path, e.ExitCode)
}

func (e *ProcessFailedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProcessFailed) work through wrapping.
func (e *ProcessFailedError) Is(target error) bool {
	return target == ErrProcessFailed //nolint:errorlint // sentinel comparison
}

// ExitCode extracts the exit code and stage of the first process failure in the chain.
func ExitCode(err error) (exitCode, stage int, ok bool) {
	var pfe *ProcessFailedError
	if errors.As(err, &pfe) {
		return pfe.ExitCode, pfe.Stage, true
	}

	return 0, 0, false
}
