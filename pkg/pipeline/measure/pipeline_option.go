package measure

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
	exporters []Exporter
}

func (pm *pipelineMeasure) New() error {
	pm.Reset()

	return nil
}

func (pm *pipelineMeasure) PrepareTask(_ []*model.TaskInfo, task *model.TaskInfo) error {
	pm.AddMetric(task.Name).SetStatus(model.StatusNotStarted)

	return nil
}

func (pm *pipelineMeasure) OnTaskStatus(task *model.TaskInfo, status model.Status) error {
	mt := pm.GetMetric(task.Name)
	if mt == nil {
		return errors.Errorf("no metric for task %s", task.Name)
	}

	mt.SetStatus(status)

	return nil
}

func (pm *pipelineMeasure) AfterTask(task *model.TaskInfo, status model.Status, totalDuration time.Duration) error {
	mt := pm.GetMetric(task.Name)
	if mt == nil {
		return errors.Errorf("no metric for task %s", task.Name)
	}

	mt.SetTotalDuration(totalDuration)

	for _, exp := range pm.exporters {
		exp.Observe(task.Name, status, totalDuration)
	}

	return nil
}

func (pm *pipelineMeasure) Finish() error {
	for _, exp := range pm.exporters {
		err := exp.Flush()
		if err != nil {
			return errors.Wrap(err, "unable to flush exporter")
		}
	}

	return nil
}

// PipelineMeasure records the status and duration of every scheduled task in measure and
// forwards durations to the exporters.
func PipelineMeasure(measure Measure, exporters ...Exporter) model.PipelineOption {
	return &pipelineMeasure{Measure: measure, exporters: exporters}
}
