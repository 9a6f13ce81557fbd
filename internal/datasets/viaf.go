package datasets

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/askiada/bookimport/internal/tools"
	"github.com/askiada/bookimport/pkg/pipeline"
)

const (
	StepVIAFImport = "viaf-import"
	StepVIAFIndex  = "viaf-index"
)

func (d *Datasets) viafTasks() []*pipeline.Task {
	return []*pipeline.Task{
		{
			Name: "viaf.import",
			Help: "Import the VIAF cluster dump",
			Step: StepVIAFImport,
			Run:  d.importVIAF,
		},
		{
			Name:    "viaf.index",
			Help:    "Index the VIAF data",
			Step:    StepVIAFIndex,
			Prereqs: []string{StepVIAFImport},
			Run:     d.stagedScript("viaf-index.sql"),
		},
		{
			Name: "viaf.record-files",
			Help: "Record the hash of the VIAF input file",
			Run: func(ctx context.Context, params pipeline.Params) error {
				d.tools.RecordFiles(ctx, d.viafFile(params.DumpDate()))

				return nil
			},
		},
	}
}

// viafFile is the MARC-XML cluster dump of the given date.
func (d *Datasets) viafFile(date string) string {
	return filepath.Join(d.cfg.DataDir, fmt.Sprintf("viaf-%s-clusters-marc21.xml.gz", date))
}

func (d *Datasets) importVIAF(ctx context.Context, params pipeline.Params) error {
	d.logger.Info("initializing VIAF schema")

	err := d.tools.PSQL(ctx, "viaf-schema.sql", true)
	if err != nil {
		return err
	}

	file := d.viafFile(params.DumpDate())
	d.logger.WithField("file", file).Info("importing VIAF data")

	return d.tools.ParseMARC(ctx, tools.MARCTarget{
		Schema:   "viaf",
		Table:    "marc_field",
		LineMode: true,
	}, file)
}
