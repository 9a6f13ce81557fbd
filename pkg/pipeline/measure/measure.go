package measure

import (
	"sync"
)

type DefaultMeasure struct {
	mu    sync.Mutex
	Tasks map[string]Metric
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		Tasks: make(map[string]Metric),
	}
}

func (m *DefaultMeasure) AddMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt := &DefaultMetric{}
	m.Tasks[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Tasks[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make(map[string]Metric, len(m.Tasks))
	for name, mt := range m.Tasks {
		all[name] = mt
	}

	return all
}

func (m *DefaultMeasure) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Tasks = make(map[string]Metric)
}

var _ Measure = (*DefaultMeasure)(nil)
