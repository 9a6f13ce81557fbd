package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Policy decides what Start does with a step that already completed.
type Policy int

const (
	// Skip makes Start report that the step must not run again.
	Skip Policy = iota
	// Fail makes Start return ErrAlreadyCompleted.
	Fail
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Tracker records which steps completed so reruns skip finished work.
type Tracker struct {
	store  Store
	logger logrus.FieldLogger
	now    func() time.Time
	runID  string
}

type TrackerOption func(t *Tracker)

func WithLogger(logger logrus.FieldLogger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithRunID tags every record started by the tracker.
func WithRunID(runID string) TrackerOption {
	return func(t *Tracker) {
		t.runID = runID
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, ErrStoreMustBeSet
	}

	t := &Tracker{
		store:  store,
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Start records the beginning of a step and reports whether it should run.
//
// A completed step is rerun only when force is set, its completion being cleared first.
// Otherwise the policy decides between skipping it and failing.
func (t *Tracker) Start(ctx context.Context, step string, force bool, policy Policy) (bool, error) {
	if step == "" {
		return false, ErrEmptyStepName
	}

	log := t.logger.WithField("step", step)

	rec, err := t.store.Get(ctx, step)

	switch {
	case errors.Is(err, ErrRecordNotFound):
	case err != nil:
		return false, errors.Wrapf(err, "unable to read state of %s", step)
	case rec.Completed() && force:
		log.Warnf("step %s already completed at %s, running again", step, rec.FinishedAt.Format(time.RFC3339))
	case rec.Completed() && policy == Fail:
		log.Errorf("step %s already completed at %s", step, rec.FinishedAt.Format(time.RFC3339))

		return false, errors.Wrap(ErrAlreadyCompleted, step)
	case rec.Completed():
		log.Infof("step %s already completed at %s", step, rec.FinishedAt.Format(time.RFC3339))

		return false, nil
	default:
		log.Warnf("step %s already started at %s, did it fail?", step, rec.StartedAt.Format(time.RFC3339))
	}

	err = t.store.Put(ctx, Record{
		Name:      step,
		RunID:     t.runID,
		StartedAt: t.now().UTC(),
	})
	if err != nil {
		return false, errors.Wrapf(err, "unable to record start of %s", step)
	}

	return true, nil
}

// Finish marks a started step as completed. It must only be called once all the external work
// of the step exited successfully.
func (t *Tracker) Finish(ctx context.Context, step string) error {
	rec, err := t.store.Get(ctx, step)
	if errors.Is(err, ErrRecordNotFound) {
		return errors.Wrap(ErrStepNotStarted, step)
	}

	if err != nil {
		return errors.Wrapf(err, "unable to read state of %s", step)
	}

	finished := t.now().UTC()
	rec.FinishedAt = &finished

	err = t.store.Put(ctx, rec)
	if err != nil {
		return errors.Wrapf(err, "unable to record completion of %s", step)
	}

	t.logger.WithField("step", step).Infof("step %s finished", step)

	return nil
}

// CheckPrereq fails with a *PrerequisiteMissingError unless the step completed.
func (t *Tracker) CheckPrereq(ctx context.Context, step string) error {
	rec, err := t.store.Get(ctx, step)
	if errors.Is(err, ErrRecordNotFound) {
		return &PrerequisiteMissingError{Step: step}
	}

	if err != nil {
		return errors.Wrapf(err, "unable to read state of %s", step)
	}

	if !rec.Completed() {
		return &PrerequisiteMissingError{Step: step, Started: true}
	}

	return nil
}

// Completed reports whether the step completed, without failing when it did not.
func (t *Tracker) Completed(ctx context.Context, step string) (bool, error) {
	err := t.CheckPrereq(ctx, step)
	if errors.Is(err, ErrPrerequisiteMissing) {
		return false, nil
	}

	return err == nil, err
}

func (t *Tracker) Records(ctx context.Context) ([]Record, error) {
	recs, err := t.store.List(ctx)

	return recs, errors.Wrap(err, "unable to list step records")
}

// Reset forgets a step entirely.
func (t *Tracker) Reset(ctx context.Context, step string) error {
	err := t.store.Delete(ctx, step)
	if err != nil {
		return errors.Wrapf(err, "unable to reset %s", step)
	}

	t.logger.WithField("step", step).Infof("step %s reset", step)

	return nil
}
