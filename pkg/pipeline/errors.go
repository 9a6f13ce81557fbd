package pipeline

import (
	"github.com/pkg/errors"
)

var (
	ErrRegistryMustBeSet = errors.New("registry must be set")
	ErrTrackerMustBeSet  = errors.New("tracker must be set")
	ErrTaskNameMustBeSet = errors.New("task name must be set")
	ErrTaskFuncMustBeSet = errors.New("task function must be set")
	ErrDuplicateTask     = errors.New("task already registered")
	ErrDuplicateStep     = errors.New("step already produced by another task")
	ErrUnknownTask       = errors.New("unknown task")
	ErrUnknownPrereq     = errors.New("no task produces the prerequisite step")
	ErrCycle             = errors.New("task dependencies form a cycle")
	ErrNoTask            = errors.New("at least one task must be requested")
)
