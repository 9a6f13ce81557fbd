// Package pipeline orders and runs import tasks.
//
// Tasks are registered once in a Registry, a directed acyclic graph keyed by task name. A task
// may name pre-tasks (Deps), which always run before it and skip themselves when their step is
// already complete, and prerequisite steps (Prereqs), which must be complete before the task may
// start but are not run on its behalf unless the caller asks for it.
//
// A Pipeline resolves the requested tasks against the registry and runs them one at a time in
// topological order. Each tracked task goes through the same sequence: prerequisites are
// checked, the step is started in the state tracker, the task body runs and the step is
// finished. The first failing task stops the run and its step is left unfinished.
//
// Run options implementing model.PipelineOption observe every scheduled task and status change,
// which is how the measure and drawer packages collect durations and render the task graph.
package pipeline
