package model

import "time"

// PipelineOption defines the interface for pipeline options.
type PipelineOption interface {
	// New initialises the pipeline option at the start of every run.
	New() error
	// PrepareTask runs once per scheduled task, in execution order, before any task runs.
	// parents are the scheduled tasks the task waits for.
	PrepareTask(parents []*TaskInfo, task *TaskInfo) error
	// OnTaskStatus runs on every status change of a task.
	OnTaskStatus(task *TaskInfo, status Status) error
	// AfterTask runs once the task reached a final status.
	AfterTask(task *TaskInfo, status Status, totalDuration time.Duration) error
	// Finish runs after the pipeline is finished, whether it failed or not.
	Finish() error
}
