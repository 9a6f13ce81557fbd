package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/bookimport/internal/store"
	"github.com/askiada/bookimport/pkg/pipeline"
	"github.com/askiada/bookimport/pkg/pipeline/drawer"
	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
	"github.com/askiada/bookimport/pkg/process"
)

type recorder struct {
	mu       sync.Mutex
	ran      []string
	params   map[string]pipeline.Params
	failWith map[string]error
}

func newRecorder() *recorder {
	return &recorder{params: make(map[string]pipeline.Params), failWith: make(map[string]error)}
}

func (r *recorder) task(name string) pipeline.Func {
	return func(_ context.Context, params pipeline.Params) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		r.ran = append(r.ran, name)
		r.params[name] = params

		return r.failWith[name]
	}
}

type statusHook struct {
	prepared []string
	parents  map[string][]string
	statuses map[string][]model.Status
	after    map[string]model.Status
	started  int
	finished int
}

func newStatusHook() *statusHook {
	return &statusHook{
		parents:  make(map[string][]string),
		statuses: make(map[string][]model.Status),
		after:    make(map[string]model.Status),
	}
}

func (h *statusHook) New() error {
	h.started++

	return nil
}

func (h *statusHook) PrepareTask(parents []*model.TaskInfo, task *model.TaskInfo) error {
	h.prepared = append(h.prepared, task.Name)
	for _, parent := range parents {
		h.parents[task.Name] = append(h.parents[task.Name], parent.Name)
	}

	return nil
}

func (h *statusHook) OnTaskStatus(task *model.TaskInfo, status model.Status) error {
	h.statuses[task.Name] = append(h.statuses[task.Name], status)

	return nil
}

func (h *statusHook) AfterTask(task *model.TaskInfo, status model.Status, _ time.Duration) error {
	h.after[task.Name] = status

	return nil
}

func (h *statusHook) Finish() error {
	h.finished++

	return nil
}

type fixture struct {
	rec     *recorder
	hook    *statusHook
	tracker *store.Tracker
	logs    *logtest.Hook
	pipe    *pipeline.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rec := newRecorder()
	reg, err := pipeline.NewRegistry(
		&pipeline.Task{Name: "init", Step: "schema", Run: rec.task("init")},
		&pipeline.Task{Name: "import", Step: "rows", Deps: []string{"init"}, Run: rec.task("import")},
		&pipeline.Task{Name: "index", Step: "rows-index", Prereqs: []string{"rows"}, Run: rec.task("index")},
		&pipeline.Task{Name: "hash", Run: rec.task("hash")},
	)
	require.NoError(t, err)

	logger, logs := logtest.NewNullLogger()
	tracker, err := store.NewTracker(store.NewMemoryStore(), store.WithLogger(logger))
	require.NoError(t, err)

	hook := newStatusHook()
	pipe, err := pipeline.New(reg, tracker, pipeline.WithLogger(logger), pipeline.WithRunOptions(hook))
	require.NoError(t, err)

	return &fixture{rec: rec, hook: hook, tracker: tracker, logs: logs, pipe: pipe}
}

func (f *fixture) completed(t *testing.T, step string) bool {
	t.Helper()

	done, err := f.tracker.Completed(context.Background(), step)
	require.NoError(t, err)

	return done
}

func TestNewPipelineErrors(t *testing.T) {
	t.Parallel()

	reg, err := pipeline.NewRegistry(sampleTasks()...)
	require.NoError(t, err)

	_, err = pipeline.New(nil, nil)
	assert.ErrorIs(t, err, pipeline.ErrRegistryMustBeSet)

	_, err = pipeline.New(reg, nil)
	assert.ErrorIs(t, err, pipeline.ErrTrackerMustBeSet)
}

func TestRunDepsFirst(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.pipe.Run(context.Background(), pipeline.Request{Tasks: []string{"import"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"init", "import"}, f.rec.ran)
	assert.True(t, f.completed(t, "schema"))
	assert.True(t, f.completed(t, "rows"))
	assert.Equal(t, []string{"init", "import"}, f.hook.prepared)
	assert.Equal(t, []string{"init"}, f.hook.parents["import"])
	assert.Equal(t, []model.Status{model.StatusRunning, model.StatusCompleted}, f.hook.statuses["import"])
	assert.Equal(t, 1, f.hook.started)
	assert.Equal(t, 1, f.hook.finished)
}

func TestRunTwiceSkips(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}}))
	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}}))

	assert.Equal(t, []string{"init", "import"}, f.rec.ran)
	assert.Equal(t, model.StatusSkipped, f.hook.after["import"])
}

func TestRunForceOnlyRequested(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}}))
	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}, Params: pipeline.Params{Force: true}}))

	assert.Equal(t, []string{"init", "import", "import"}, f.rec.ran)
	assert.True(t, f.rec.params["import"].Force)
	assert.Equal(t, model.StatusSkipped, f.hook.after["init"])
}

func TestRunPrereqMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.pipe.Run(context.Background(), pipeline.Request{Tasks: []string{"index"}})
	require.ErrorIs(t, err, store.ErrPrerequisiteMissing)

	var missing *store.PrerequisiteMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rows", missing.Step)

	assert.Empty(t, f.rec.ran)
	assert.False(t, f.completed(t, "rows-index"))
	assert.Equal(t, model.StatusFailed, f.hook.after["index"])
	assert.Equal(t, 1, f.hook.finished)
}

func TestRunWithPrereqs(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.pipe.Run(context.Background(), pipeline.Request{Tasks: []string{"index"}, WithPrereqs: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"init", "import", "index"}, f.rec.ran)
	assert.True(t, f.completed(t, "rows-index"))
}

func TestRunFailIfDone(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}}))

	err := f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}, FailIfDone: true})
	assert.ErrorIs(t, err, store.ErrAlreadyCompleted)
	assert.Equal(t, model.StatusSkipped, f.hook.after["init"], "pre-tasks keep their own policy")
}

func TestRunFailureStopsAndLeavesStepOpen(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.rec.failWith["init"] = &process.ProcessFailedError{
		Err:      process.ErrProcessFailed,
		Command:  process.Cmd("psql"),
		Stage:    0,
		ExitCode: 3,
	}

	err := f.pipe.Run(context.Background(), pipeline.Request{Tasks: []string{"import"}})
	require.ErrorIs(t, err, process.ErrProcessFailed)

	assert.Equal(t, []string{"init"}, f.rec.ran)
	assert.False(t, f.completed(t, "schema"))
	assert.NotContains(t, f.hook.after, "import")

	var failure *logrus.Entry
	for _, entry := range f.logs.AllEntries() {
		if entry.Message == "task failed" {
			failure = entry
		}
	}

	require.NotNil(t, failure)
	assert.Equal(t, "init", failure.Data["task"])
	assert.Equal(t, "schema", failure.Data["step"])
	assert.Equal(t, 3, failure.Data["exit_code"])
	assert.Equal(t, 0, failure.Data["stage"])
}

func TestRunUntrackedAlwaysRuns(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"hash"}}))
	require.NoError(t, f.pipe.Run(ctx, pipeline.Request{Tasks: []string{"hash"}}))

	assert.Equal(t, []string{"hash", "hash"}, f.rec.ran)

	recs, err := f.tracker.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunParamsPassed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.pipe.Run(context.Background(), pipeline.Request{
		Tasks:  []string{"import"},
		Params: pipeline.Params{Force: true, NoConvert: true, Date: "20190101"},
	})
	require.NoError(t, err)

	assert.False(t, f.rec.params["init"].Force)
	assert.True(t, f.rec.params["import"].Force)
	assert.False(t, f.rec.params["import"].Convert())
	assert.Equal(t, "20190101", f.rec.params["init"].Date)
}

func TestRunUnknownTask(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	err := f.pipe.Run(context.Background(), pipeline.Request{Tasks: []string{"nope"}})
	assert.ErrorIs(t, err, pipeline.ErrUnknownTask)
	assert.Empty(t, f.rec.ran)
}

func TestRunTwiceWithRunOptions(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	reg, err := pipeline.NewRegistry(
		&pipeline.Task{Name: "init", Step: "schema", Run: rec.task("init")},
		&pipeline.Task{Name: "import", Step: "rows", Deps: []string{"init"}, Run: rec.task("import")},
		&pipeline.Task{Name: "hash", Run: rec.task("hash")},
	)
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	tracker, err := store.NewTracker(store.NewMemoryStore(), store.WithLogger(logger))
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "run.dot")
	msr := measure.NewDefaultMeasure()
	hook := newStatusHook()

	pipe, err := pipeline.New(reg, tracker, pipeline.WithLogger(logger), pipeline.WithRunOptions(
		measure.PipelineMeasure(msr),
		drawer.PipelineDrawer(drawer.NewDOTDrawer(file), msr),
		hook,
	))
	require.NoError(t, err)
	assert.Zero(t, hook.started, "options start with a run")

	ctx := context.Background()
	require.NoError(t, pipe.Run(ctx, pipeline.Request{Tasks: []string{"import"}}))
	require.NoError(t, pipe.Run(ctx, pipeline.Request{Tasks: []string{"hash"}}))

	assert.Equal(t, 2, hook.started)
	assert.Equal(t, 2, hook.finished)

	metrics := msr.AllMetrics()
	assert.Len(t, metrics, 1, "metrics only hold the last run")
	require.Contains(t, metrics, "hash")
	assert.Equal(t, model.StatusCompleted, metrics["hash"].Status())

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"hash"`)
	assert.NotContains(t, string(content), `"import"`)
}
