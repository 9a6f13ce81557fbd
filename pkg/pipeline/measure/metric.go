package measure

import (
	"sync"
	"time"

	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type DefaultMetric struct {
	mu          sync.Mutex
	status      model.Status
	EndDuration time.Duration
}

func (mt *DefaultMetric) SetStatus(status model.Status) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.status = status
}

func (mt *DefaultMetric) Status() model.Status {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.status == "" {
		return model.StatusNotStarted
	}

	return mt.status
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.EndDuration = endDuration
}

func (mt *DefaultMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return round(mt.EndDuration)
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}

var _ Metric = (*DefaultMetric)(nil)
