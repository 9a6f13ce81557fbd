package drawer

import (
	"time"

	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a task graph.
type Drawer interface {
	// Reset empties the graph.
	Reset()
	// AddTask adds a task to the graph.
	AddTask(name string) error
	// AddLink adds a link from a task to a task waiting for it. prereq marks a link to a
	// prerequisite producer rather than a pre-task.
	AddLink(parentName, childName string, prereq bool) error
	// SetStatus colours a task by status.
	SetStatus(name string, status model.Status) error
	// SetTotalTime labels the graph with the time elapsed since startTime.
	SetTotalTime(startTime time.Time)
	// AddMeasure adds measured statuses and durations to the graph.
	AddMeasure(measure measure.Measure) error
	// Draw creates a file with the graph.
	Draw() error
}
