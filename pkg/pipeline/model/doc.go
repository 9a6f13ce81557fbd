// Package model holds the types shared by the pipeline and its run options: the description of
// a scheduled task and the hooks an option implements to follow a run.
package model
