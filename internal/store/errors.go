package store

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrRecordNotFound      = errors.New("step record not found")
	ErrEmptyStepName       = errors.New("step name must be set")
	ErrStoreMustBeSet      = errors.New("store must be set")
	ErrUnsupportedDSN      = errors.New("unsupported state store dsn")
	ErrStepNotStarted      = errors.New("step was not started")
	ErrAlreadyCompleted    = errors.New("step already completed")
	ErrPrerequisiteMissing = errors.New("prerequisite missing")
)

// PrerequisiteMissingError is returned when an upstream step has not completed.
type PrerequisiteMissingError struct {
	Step string
	// Started is true when the step has a record but never finished.
	Started bool
}

func (e *PrerequisiteMissingError) Error() string {
	if e.Started {
		return fmt.Sprintf("prerequisite %s started but not completed", e.Step)
	}

	return fmt.Sprintf("prerequisite %s not run", e.Step)
}

func (e *PrerequisiteMissingError) Is(target error) bool {
	return target == ErrPrerequisiteMissing //nolint:errorlint // sentinel comparison
}
