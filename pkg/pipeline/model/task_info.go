package model

// Status is the state of a task within one run.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Done reports whether the status is final for the run.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

// TaskInfo describes a task scheduled in a run.
type TaskInfo struct {
	Name string
	// Step is the name of the step record, empty for untracked tasks.
	Step    string
	Help    string
	Deps    []string
	Prereqs []string
	// Requested is set for tasks named by the caller, as opposed to pulled in dependencies.
	Requested bool
}

// Tracked reports whether the task keeps a step record.
func (t *TaskInfo) Tracked() bool {
	return t.Step != ""
}

// DependsOn reports whether name is one of the task pre-tasks.
func (t *TaskInfo) DependsOn(name string) bool {
	for _, dep := range t.Deps {
		if dep == name {
			return true
		}
	}

	return false
}
