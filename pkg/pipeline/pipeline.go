package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/bookimport/internal/store"
	"github.com/askiada/bookimport/pkg/pipeline/model"
	"github.com/askiada/bookimport/pkg/process"
)

// Tracker keeps the step records consulted by the pipeline.
type Tracker interface {
	Start(ctx context.Context, step string, force bool, policy store.Policy) (bool, error)
	Finish(ctx context.Context, step string) error
	CheckPrereq(ctx context.Context, step string) error
}

// Request names the tasks of one run and how to run them.
type Request struct {
	Tasks  []string
	Params Params
	// WithPrereqs schedules the producers of prerequisite steps too.
	WithPrereqs bool
	// FailIfDone makes requested tasks fail instead of skipping when their step is complete.
	FailIfDone bool
}

// Pipeline runs tasks from a registry.
type Pipeline struct {
	registry  *Registry
	tracker   Tracker
	logger    logrus.FieldLogger
	opts      []model.PipelineOption
	startTime time.Time
}

// New creates a new pipeline.
func New(registry *Registry, tracker Tracker, options ...Option) (*Pipeline, error) {
	if registry == nil {
		return nil, ErrRegistryMustBeSet
	}

	if tracker == nil {
		return nil, ErrTrackerMustBeSet
	}

	pipe := &Pipeline{
		registry: registry,
		tracker:  tracker,
		logger:   logrus.StandardLogger(),
	}

	for _, option := range options {
		option(pipe)
	}

	return pipe, nil
}

type scheduled struct {
	task *Task
	info *model.TaskInfo
}

// Run executes the requested tasks one after the other and stops at the first failure.
// Run options start afresh on every call and, once the tasks are resolved, are finished
// whether the run fails or not.
func (p *Pipeline) Run(ctx context.Context, req Request) error {
	p.startTime = time.Now()

	for _, opt := range p.opts {
		err := opt.New()
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	plan, err := p.prepare(req)
	if err != nil {
		return err
	}

	p.logger.WithField("tasks", len(plan)).Info("starting import run")

	for _, item := range plan {
		err := p.runTask(ctx, item, req)
		if err != nil {
			finishErr := p.finishRun()
			if finishErr != nil {
				p.logger.WithError(finishErr).Warn("unable to finish run options")
			}

			return err
		}
	}

	p.logger.WithField("elapsed", time.Since(p.startTime).Round(time.Millisecond)).Info("import run finished")

	return p.finishRun()
}

func (p *Pipeline) prepare(req Request) ([]scheduled, error) {
	tasks, err := p.registry.Resolve(req.Tasks, req.WithPrereqs)
	if err != nil {
		return nil, err
	}

	requested := make(map[string]bool, len(req.Tasks))
	for _, name := range req.Tasks {
		requested[name] = true
	}

	infos := make(map[string]*model.TaskInfo, len(tasks))
	plan := make([]scheduled, 0, len(tasks))

	for _, task := range tasks {
		info := task.info(requested[task.Name])

		var parents []*model.TaskInfo

		for _, parent := range p.registry.parents(task.Name) {
			if parentInfo, ok := infos[parent]; ok {
				parents = append(parents, parentInfo)
			}
		}

		for _, opt := range p.opts {
			err := opt.PrepareTask(parents, info)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to prepare task %s", task.Name)
			}
		}

		infos[task.Name] = info
		plan = append(plan, scheduled{task: task, info: info})
	}

	return plan, nil
}

func (p *Pipeline) runTask(ctx context.Context, item scheduled, req Request) error {
	log := p.logger.WithField("task", item.task.Name)
	if item.info.Tracked() {
		log = log.WithField("step", item.task.Step)
	}

	start := time.Now()

	status, err := p.execute(ctx, item, req, log)
	if status == model.StatusFailed {
		logFailure(log, err)
	}

	hookErr := p.setStatus(item.info, status)
	if hookErr != nil && err == nil {
		err = hookErr
	}

	elapsed := time.Since(start)

	for _, opt := range p.opts {
		hookErr := opt.AfterTask(item.info, status, elapsed)
		if hookErr != nil && err == nil {
			err = errors.Wrap(hookErr, "unable to run after task function")
		}
	}

	if status == model.StatusCompleted {
		log.WithField("elapsed", elapsed.Round(time.Millisecond)).Info("task completed")
	}

	return err
}

func (p *Pipeline) execute(ctx context.Context, item scheduled, req Request, log logrus.FieldLogger) (model.Status, error) {
	task := item.task

	for _, prereq := range task.Prereqs {
		err := p.tracker.CheckPrereq(ctx, prereq)
		if err != nil {
			return model.StatusFailed, errors.Wrapf(err, "task %s", task.Name)
		}
	}

	params := req.Params
	params.Force = params.Force && item.info.Requested

	if item.info.Tracked() {
		policy := task.Policy
		if item.info.Requested && req.FailIfDone {
			policy = store.Fail
		}

		proceed, err := p.tracker.Start(ctx, task.Step, params.Force, policy)
		if err != nil {
			return model.StatusFailed, errors.Wrapf(err, "task %s", task.Name)
		}

		if !proceed {
			return model.StatusSkipped, nil
		}
	}

	err := p.setStatus(item.info, model.StatusRunning)
	if err != nil {
		return model.StatusFailed, err
	}

	log.Info("running task")

	err = task.Run(ctx, params)
	if err != nil {
		return model.StatusFailed, errors.Wrapf(err, "task %s", task.Name)
	}

	if item.info.Tracked() {
		err = p.tracker.Finish(ctx, task.Step)
		if err != nil {
			return model.StatusFailed, errors.Wrapf(err, "task %s", task.Name)
		}
	}

	return model.StatusCompleted, nil
}

func (p *Pipeline) setStatus(info *model.TaskInfo, status model.Status) error {
	for _, opt := range p.opts {
		err := opt.OnTaskStatus(info, status)
		if err != nil {
			return errors.Wrap(err, "unable to run task status function")
		}
	}

	return nil
}

func logFailure(log logrus.FieldLogger, err error) {
	fields := logrus.Fields{}
	if exitCode, stage, ok := process.ExitCode(err); ok {
		fields["exit_code"] = exitCode
		fields["stage"] = stage
	}

	log.WithError(err).WithFields(fields).Error("task failed")
}

func (p *Pipeline) finishRun() error {
	for _, opt := range p.opts {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}

	return nil
}
