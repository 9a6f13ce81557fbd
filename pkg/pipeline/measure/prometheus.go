package measure

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/bookimport/pkg/pipeline/model"
)

const namespace = "bookimport"

// Prometheus records task durations in its own registry. Flush writes the registry in the text
// exposition format to textfile, for the node exporter textfile collector; an empty textfile
// makes Flush a no-op.
type Prometheus struct {
	registry    *prometheus.Registry
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	textfile    string
}

func NewPrometheus(textfile string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of import tasks.",
			// 1s to about 3 days.
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"task", "status"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run of an import task.",
		}, []string{"task"}),
		textfile: textfile,
	}

	p.registry.MustRegister(p.duration, p.lastSuccess)

	return p
}

func (p *Prometheus) Observe(task string, status model.Status, elapsed time.Duration) {
	p.duration.WithLabelValues(task, string(status)).Observe(elapsed.Seconds())

	if status == model.StatusCompleted {
		p.lastSuccess.WithLabelValues(task).SetToCurrentTime()
	}
}

// Gatherer exposes the registry, for tests and HTTP handlers.
func (p *Prometheus) Gatherer() prometheus.Gatherer {
	return p.registry
}

func (p *Prometheus) Flush() error {
	if p.textfile == "" {
		return nil
	}

	err := prometheus.WriteToTextfile(p.textfile, p.registry)
	if err != nil {
		return errors.Wrapf(err, "unable to write metrics to %s", p.textfile)
	}

	return nil
}

var _ Exporter = (*Prometheus)(nil)
