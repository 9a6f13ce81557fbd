package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (pd *pipelineDrawer) New() error {
	pd.Reset()
	pd.startTime = time.Now()

	return nil
}

func (pd *pipelineDrawer) PrepareTask(parents []*model.TaskInfo, task *model.TaskInfo) error {
	err := pd.AddTask(task.Name)
	if err != nil {
		return err
	}

	for _, parent := range parents {
		err := pd.AddLink(parent.Name, task.Name, !task.DependsOn(parent.Name))
		if err != nil {
			return err
		}
	}

	return nil
}

func (pd *pipelineDrawer) OnTaskStatus(task *model.TaskInfo, status model.Status) error {
	return pd.SetStatus(task.Name, status)
}

func (pd *pipelineDrawer) AfterTask(_ *model.TaskInfo, _ model.Status, _ time.Duration) error {
	return nil
}

func (pd *pipelineDrawer) Finish() error {
	pd.SetTotalTime(pd.startTime)

	if pd.m != nil {
		err := pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the scheduled tasks once the run is over. measure may be nil.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{Drawer: drawer, m: measure}
}
