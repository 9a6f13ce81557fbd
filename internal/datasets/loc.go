package datasets

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/askiada/bookimport/internal/tools"
	"github.com/askiada/bookimport/pkg/pipeline"
)

const (
	StepLOCMDSInit      = "loc-mds-init"
	StepLOCIDInit       = "loc-id-init"
	StepLOCMDSBooks     = "loc-mds-books"
	StepLOCMDSNames     = "loc-mds-names"
	StepLOCMDSBookIndex = "loc-mds-book-index"
	StepLOCMDSNameIndex = "loc-mds-name-index"
	StepLOCIDNames      = "loc-id-names"
	StepLOCIDWorks      = "loc-id-works"
	StepLOCIDInstances  = "loc-id-instances"
	StepLOCIDTriples    = "loc-id-triple-index"
	StepLOCIDBookIndex  = "loc-id-book-index"
)

const (
	locMDSSchema = "locmds"
	locIDSchema  = "locid"

	locBooksPattern = "BooksAll.2014.part*.xml.gz"
	locBookFiles    = "BooksAll.2014.*.xml.gz"
	locNamesFile    = "Names.2014.combined.xml.gz"
	locAuthFile     = "authoritiesnames.nt.both.zip"
	locWorkFile     = "bibframeworks.nt.zip"
	locInstanceFile = "bibframeinstances.nt.zip"
)

func (d *Datasets) locTasks() []*pipeline.Task {
	return []*pipeline.Task{
		{
			Name: "loc.init",
			Help: "Create the LOC MDS schema",
			Step: StepLOCMDSInit,
			Run:  d.unstagedScript("loc-mds-schema.sql"),
		},
		{
			Name: "loc.init-id",
			Help: "Create the LOC ID schema",
			Step: StepLOCIDInit,
			Run:  d.unstagedScript("loc-id-schema.sql"),
		},
		{
			Name: "loc.import-books",
			Help: "Import the LOC MDS book records",
			Step: StepLOCMDSBooks,
			Deps: []string{"loc.init"},
			Run:  d.importBooks,
		},
		{
			Name: "loc.import-names",
			Help: "Import the LOC MDS name records",
			Step: StepLOCMDSNames,
			Deps: []string{"loc.init"},
			Run:  d.importNames,
		},
		{
			Name:    "loc.index-books",
			Help:    "Index the LOC MDS book records",
			Step:    StepLOCMDSBookIndex,
			Prereqs: []string{StepLOCMDSBooks},
			Run:     d.stagedScript("loc-mds-index-books.sql"),
		},
		{
			Name:    "loc.index-names",
			Help:    "Index the LOC MDS name records",
			Step:    StepLOCMDSNameIndex,
			Prereqs: []string{StepLOCMDSNames},
			Run:     d.stagedScript("loc-mds-index-names.sql"),
		},
		{
			Name: "loc.import-id-auth",
			Help: "Import the LOC ID name authorities",
			Step: StepLOCIDNames,
			Deps: []string{"loc.init-id"},
			Run:  d.importID("auth", locAuthFile),
		},
		{
			Name: "loc.import-id-work",
			Help: "Import the LOC ID BIBFRAME works",
			Step: StepLOCIDWorks,
			Deps: []string{"loc.init-id"},
			Run:  d.importID("work", locWorkFile),
		},
		{
			Name: "loc.import-id-instance",
			Help: "Import the LOC ID BIBFRAME instances",
			Step: StepLOCIDInstances,
			Deps: []string{"loc.init-id"},
			Run:  d.importID("instance", locInstanceFile),
		},
		{
			Name:    "loc.index-id-triples",
			Help:    "Create the basic indexes on LOC ID triples",
			Step:    StepLOCIDTriples,
			Prereqs: []string{StepLOCIDInit, StepLOCIDNames, StepLOCIDInstances, StepLOCIDWorks},
			Run:     d.stagedScript("loc-id-triple-index.sql"),
		},
		{
			Name:    "loc.index-id-books",
			Help:    "Create the book indexes on LOC ID data",
			Step:    StepLOCIDBookIndex,
			Prereqs: []string{StepLOCIDInit, StepLOCIDWorks, StepLOCIDInstances, StepLOCIDTriples},
			Run:     d.stagedScript("loc-id-book-index.sql"),
		},
		{
			Name: "loc.record-mds-files",
			Help: "Record the hashes of the LOC MDS input files",
			Run:  d.recordMDSFiles,
		},
		{
			Name: "loc.record-id-files",
			Help: "Record the hashes of the LOC ID input files",
			Run:  d.recordIDFiles,
		},
	}
}

func (d *Datasets) unstagedScript(script string) pipeline.Func {
	return func(ctx context.Context, _ pipeline.Params) error {
		return d.tools.PSQL(ctx, script, false)
	}
}

func (d *Datasets) importBooks(ctx context.Context, _ pipeline.Params) error {
	files, err := glob(d.cfg.LOCDir(), locBooksPattern)
	if err != nil {
		return err
	}

	log := d.logger.WithField("files", len(files))
	if len(files) == 0 {
		log.Warnf("no file matches %s in %s", locBooksPattern, d.cfg.LOCDir())
	}

	log.Info("importing LOC book records")

	return d.tools.ParseMARC(ctx, tools.MARCTarget{
		Schema:   locMDSSchema,
		Table:    "book_marc_field",
		Truncate: true,
	}, files...)
}

func (d *Datasets) importNames(ctx context.Context, _ pipeline.Params) error {
	file := filepath.Join(d.cfg.LOCDir(), locNamesFile)
	d.logger.WithField("file", file).Info("importing LOC name records")

	return d.tools.ParseMARC(ctx, tools.MARCTarget{
		Schema:   locMDSSchema,
		Table:    "name_marc_field",
		Truncate: true,
	}, file)
}

// importID loads one LOC ID N-Triples archive. With conversion disabled the task does nothing
// and its step is still marked finished.
func (d *Datasets) importID(prefix, name string) pipeline.Func {
	return func(ctx context.Context, params pipeline.Params) error {
		file := filepath.Join(d.cfg.LOCDir(), name)
		log := d.logger.WithFields(logrus.Fields{"file": file, "prefix": prefix})

		if !params.Convert() {
			log.Info("conversion disabled, skipping the import")

			return nil
		}

		log.Info("converting ntriples to PostgreSQL")

		return d.tools.ImportNTriples(ctx, locIDSchema, prefix, file)
	}
}

func (d *Datasets) recordMDSFiles(ctx context.Context, _ pipeline.Params) error {
	files, err := glob(d.cfg.LOCDir(), locBookFiles)
	if err != nil {
		return err
	}

	files = append(files, filepath.Join(d.cfg.LOCDir(), locNamesFile))
	d.tools.RecordFiles(ctx, files...)

	return nil
}

func (d *Datasets) recordIDFiles(ctx context.Context, _ pipeline.Params) error {
	files := make([]string, 0, 3)
	for _, name := range []string{locAuthFile, locInstanceFile, locWorkFile} {
		files = append(files, filepath.Join(d.cfg.LOCDir(), name))
	}

	d.tools.RecordFiles(ctx, files...)

	return nil
}
