package measure_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/bookimport/pkg/pipeline/measure"
	"github.com/askiada/bookimport/pkg/pipeline/model"
)

func TestDefaultMeasure(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	mt := msr.AddMetric("viaf.import")

	assert.Equal(t, model.StatusNotStarted, mt.Status())

	mt.SetStatus(model.StatusCompleted)
	mt.SetTotalDuration(1500 * time.Millisecond)

	assert.Equal(t, model.StatusCompleted, msr.GetMetric("viaf.import").Status())
	assert.Equal(t, 2*time.Second, mt.GetTotalDuration())
	assert.Len(t, msr.AllMetrics(), 1)
	assert.Nil(t, msr.GetMetric("viaf.index"))

	msr.Reset()
	assert.Empty(t, msr.AllMetrics())
	assert.Nil(t, msr.GetMetric("viaf.import"))
}

func TestPipelineMeasure(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "bookimport.prom")
	msr := measure.NewDefaultMeasure()
	prom := measure.NewPrometheus(file)
	opt := measure.PipelineMeasure(msr, prom)

	books := &model.TaskInfo{Name: "loc.import-books", Step: "loc-mds-books"}
	index := &model.TaskInfo{Name: "loc.index-books", Step: "loc-mds-book-index"}

	require.NoError(t, opt.New())
	require.NoError(t, opt.PrepareTask(nil, books))
	require.NoError(t, opt.PrepareTask([]*model.TaskInfo{books}, index))
	require.NoError(t, opt.OnTaskStatus(books, model.StatusRunning))
	require.NoError(t, opt.OnTaskStatus(books, model.StatusCompleted))
	require.NoError(t, opt.AfterTask(books, model.StatusCompleted, 2*time.Second))
	require.NoError(t, opt.OnTaskStatus(index, model.StatusFailed))
	require.NoError(t, opt.AfterTask(index, model.StatusFailed, time.Second))
	require.NoError(t, opt.Finish())

	assert.Equal(t, model.StatusCompleted, msr.GetMetric("loc.import-books").Status())
	assert.Equal(t, model.StatusFailed, msr.GetMetric("loc.index-books").Status())
	assert.Equal(t, 2*time.Second, msr.GetMetric("loc.import-books").GetTotalDuration())

	count, err := testutil.GatherAndCount(prom.Gatherer(), "bookimport_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(prom.Gatherer(), "bookimport_task_last_success_timestamp_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), `bookimport_task_duration_seconds_count{status="failed",task="loc.index-books"} 1`))
}

func TestPipelineMeasureUnknownTask(t *testing.T) {
	t.Parallel()

	opt := measure.PipelineMeasure(measure.NewDefaultMeasure())
	assert.Error(t, opt.OnTaskStatus(&model.TaskInfo{Name: "nope"}, model.StatusRunning))
	assert.Error(t, opt.AfterTask(&model.TaskInfo{Name: "nope"}, model.StatusFailed, time.Second))
}

func TestPrometheusNoTextfile(t *testing.T) {
	t.Parallel()

	prom := measure.NewPrometheus("")
	prom.Observe("viaf.index", model.StatusSkipped, 0)
	assert.NoError(t, prom.Flush())
}
