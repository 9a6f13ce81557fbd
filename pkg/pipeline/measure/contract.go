package measure

import (
	"time"

	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	// Reset forgets every metric.
	Reset()
}

type Metric interface {
	SetStatus(status model.Status)
	Status() model.Status
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
}

// Exporter publishes task durations outside of the process.
type Exporter interface {
	Observe(task string, status model.Status, elapsed time.Duration)
	Flush() error
}
