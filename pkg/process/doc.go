// Package process runs external tools on behalf of import tasks.
//
// A Runner takes an ordered list of commands. By default the commands run one after the other and
// the first one exiting with a non-zero status stops the run: later commands are never started.
// With the Piped option the commands form a shell-like pipe, the standard output of each stage
// feeding the standard input of the next one, and the pipe fails as a whole if any stage fails.
//
// Every failure is reported as a *ProcessFailedError carrying the stage index and the exit code,
// so callers can leave the corresponding step unfinished and let the operator retry.
//
// Processes are waited on without timeout: imports of large compressed datasets can run for hours.
// The only way to stop them early is to cancel the context given to Run.
package process
