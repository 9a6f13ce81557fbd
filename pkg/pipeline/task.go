package pipeline

import (
	"context"

	"github.com/askiada/bookimport/internal/store"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

// DefaultDate is the VIAF dump date used when none is given.
const DefaultDate = "20181104"

// Params are the run parameters handed to every task body.
type Params struct {
	// Force reruns a completed step. The pipeline only sets it for requested tasks.
	Force bool
	// NoConvert skips the conversion tool; the step is still marked finished.
	NoConvert bool
	// ConvertOnly forces the conversion on, whatever NoConvert says.
	ConvertOnly bool
	Date        string
}

// Convert reports whether the conversion tool must run.
func (p Params) Convert() bool {
	return !p.NoConvert || p.ConvertOnly
}

// DumpDate returns the requested dump date or DefaultDate.
func (p Params) DumpDate() string {
	if p.Date == "" {
		return DefaultDate
	}

	return p.Date
}

// Func is the body of a task.
type Func func(ctx context.Context, params Params) error

// Task is a named unit of import work.
type Task struct {
	Name string
	Help string
	// Step names the step record kept for the task. Untracked tasks leave it empty and run
	// every time they are scheduled.
	Step string
	// Deps are tasks run before this one.
	Deps []string
	// Prereqs are steps that must be complete before this task starts.
	Prereqs []string
	// Policy applies when the step is already complete and the run is not forced.
	Policy store.Policy
	Run    Func
}

// DependsOn reports whether name is one of the task pre-tasks.
func (t *Task) DependsOn(name string) bool {
	for _, dep := range t.Deps {
		if dep == name {
			return true
		}
	}

	return false
}

func (t *Task) info(requested bool) *model.TaskInfo {
	return &model.TaskInfo{
		Name:      t.Name,
		Step:      t.Step,
		Help:      t.Help,
		Deps:      append([]string(nil), t.Deps...),
		Prereqs:   append([]string(nil), t.Prereqs...),
		Requested: requested,
	}
}
