// Package datasets defines the import tasks of each bibliographic source.
package datasets

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/bookimport/internal/config"
	"github.com/askiada/bookimport/internal/tools"
	"github.com/askiada/bookimport/pkg/pipeline"
)

// Tools is what dataset tasks need from the toolbox.
type Tools interface {
	ParseMARC(ctx context.Context, target tools.MARCTarget, files ...string) error
	ImportNTriples(ctx context.Context, schema, prefix, file string) error
	PSQL(ctx context.Context, script string, staged bool) error
	RecordFiles(ctx context.Context, files ...string)
}

type Datasets struct {
	cfg    *config.Config
	tools  Tools
	logger logrus.FieldLogger
}

func New(cfg *config.Config, tb Tools, logger logrus.FieldLogger) *Datasets {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Datasets{cfg: cfg, tools: tb, logger: logger}
}

// Tasks returns every dataset task.
func (d *Datasets) Tasks() []*pipeline.Task {
	return append(d.locTasks(), d.viafTasks()...)
}

// Registry registers every dataset task.
func (d *Datasets) Registry() (*pipeline.Registry, error) {
	return pipeline.NewRegistry(d.Tasks()...)
}

// glob lists the files matching pattern under dir, sorted.
func glob(dir, pattern string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid pattern %s", pattern)
	}

	sort.Strings(files)

	return files, nil
}

// stagedScript runs a staged SQL script.
func (d *Datasets) stagedScript(script string) pipeline.Func {
	return func(ctx context.Context, _ pipeline.Params) error {
		return d.tools.PSQL(ctx, script, true)
	}
}
