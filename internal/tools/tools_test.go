package tools_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/bookimport/internal/config"
	"github.com/askiada/bookimport/internal/sqlscript"
	"github.com/askiada/bookimport/internal/tools"
	"github.com/askiada/bookimport/pkg/process"
)

type fakeRunner struct {
	cmds []process.Command
	err  error
}

func (r *fakeRunner) Run(_ context.Context, cmds ...process.Command) error {
	r.cmds = append(r.cmds, cmds...)

	return r.err
}

type fakeScripts struct {
	scripts []*sqlscript.Script
	res     sqlscript.Result
	err     error
}

func (s *fakeScripts) Run(_ context.Context, script *sqlscript.Script) (sqlscript.Result, error) {
	s.scripts = append(s.scripts, script)

	return s.res, s.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = "/data"
	cfg.ScriptDir = t.TempDir()
	cfg.BookTool = "/opt/bookdata"
	cfg.PSQL = "/usr/bin/psql"
	cfg.DBURL = "postgres://db/books"

	return cfg
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	_, err := tools.New(nil, &fakeRunner{}, nil, nil)
	assert.ErrorIs(t, err, tools.ErrConfigMustBeSet)

	_, err = tools.New(config.Default(), nil, nil, nil)
	assert.ErrorIs(t, err, tools.ErrRunnerMustBeSet)
}

func TestCommands(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		run      func(ctx context.Context, tb *tools.Toolbox) error
		expected process.Command
	}{
		"parse marc truncate": {
			run: func(ctx context.Context, tb *tools.Toolbox) error {
				return tb.ParseMARC(ctx, tools.MARCTarget{Schema: "locmds", Table: "book_marc_field", Truncate: true},
					"/data/LOC/BooksAll.2014.part01.xml.gz", "/data/LOC/BooksAll.2014.part02.xml.gz")
			},
			expected: process.Command{Path: "/opt/bookdata", Args: []string{
				"parse-marc", "--db-schema", "locmds", "-t", "book_marc_field", "--truncate",
				"/data/LOC/BooksAll.2014.part01.xml.gz", "/data/LOC/BooksAll.2014.part02.xml.gz",
			}},
		},
		"parse marc line mode": {
			run: func(ctx context.Context, tb *tools.Toolbox) error {
				return tb.ParseMARC(ctx, tools.MARCTarget{Schema: "viaf", Table: "marc_field", LineMode: true},
					"/data/viaf-20181104-clusters-marc21.xml.gz")
			},
			expected: process.Command{Path: "/opt/bookdata", Args: []string{
				"parse-marc", "--db-schema", "viaf", "-t", "marc_field", "--line-mode",
				"/data/viaf-20181104-clusters-marc21.xml.gz",
			}},
		},
		"import ntriples": {
			run: func(ctx context.Context, tb *tools.Toolbox) error {
				return tb.ImportNTriples(ctx, "locid", "auth", "/data/LOC/authoritiesnames.nt.both.zip")
			},
			expected: process.Command{Path: "/opt/bookdata", Args: []string{
				"import-ntriples", "--db-schema", "locid", "--prefix", "auth", "--truncate",
				"/data/LOC/authoritiesnames.nt.both.zip",
			}},
		},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{}
			tb, err := tools.New(testConfig(t), runner, nil, nil)
			require.NoError(t, err)

			require.NoError(t, tc.run(context.Background(), tb))
			require.Len(t, runner.cmds, 1)

			if diff := cmp.Diff(tc.expected, runner.cmds[0]); diff != "" {
				t.Errorf("unexpected command (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPSQLUnstaged(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	runner := &fakeRunner{}
	tb, err := tools.New(cfg, runner, nil, nil)
	require.NoError(t, err)

	require.NoError(t, tb.PSQL(context.Background(), "loc-mds-schema.sql", false))
	require.Len(t, runner.cmds, 1)

	expected := process.Command{Path: "/usr/bin/psql", Args: []string{
		"-v", "ON_ERROR_STOP=on", "--single-transaction", "-d", "postgres://db/books",
		"-f", filepath.Join(cfg.ScriptDir, "loc-mds-schema.sql"),
	}}
	if diff := cmp.Diff(expected, runner.cmds[0]); diff != "" {
		t.Errorf("unexpected command (-want +got):\n%s", diff)
	}
}

func TestPSQLStaged(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Script("viaf-index.sql"),
		[]byte("--- #step Index\nCREATE INDEX a ON viaf.marc_field (tag);\n--- #step Analyze\n--- #notx\nANALYZE viaf.marc_field;\n"), 0o600))

	runner := &fakeRunner{}
	scripts := &fakeScripts{res: sqlscript.Result{Executed: 1, Tolerated: 1}}
	logger, hook := logtest.NewNullLogger()

	tb, err := tools.New(cfg, runner, scripts, logger)
	require.NoError(t, err)

	require.NoError(t, tb.PSQL(context.Background(), "viaf-index.sql", true))
	assert.Empty(t, runner.cmds)
	require.Len(t, scripts.scripts, 1)
	assert.Len(t, scripts.scripts[0].Chunks, 2)
	assert.Equal(t, "1 chunks failed with allowed conditions", hook.LastEntry().Message)
}

func TestPSQLStagedErrors(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	tb, err := tools.New(cfg, &fakeRunner{}, nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, tb.PSQL(context.Background(), "viaf-index.sql", true), tools.ErrNoScriptRunner)

	tb, err = tools.New(cfg, &fakeRunner{}, &fakeScripts{}, nil)
	require.NoError(t, err)
	assert.Error(t, tb.PSQL(context.Background(), "missing.sql", true))

	require.NoError(t, os.WriteFile(cfg.Script("bad.sql"), []byte("--- #step a\nSELECT 1;\n"), 0o600))

	scripts := &fakeScripts{err: &sqlscript.ChunkError{Err: assert.AnError, Script: "bad.sql", Label: "a"}}
	tb, err = tools.New(cfg, &fakeRunner{}, scripts, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, tb.PSQL(context.Background(), "bad.sql", true), sqlscript.ErrChunkFailed)
}

func TestRecordFilesFailureIsLogged(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: &process.ProcessFailedError{Err: process.ErrProcessFailed, ExitCode: 2}}
	logger, hook := logtest.NewNullLogger()

	tb, err := tools.New(testConfig(t), runner, nil, logger)
	require.NoError(t, err)

	tb.RecordFiles(context.Background(), "/data/viaf-20181104-clusters-marc21.xml.gz")

	require.Len(t, runner.cmds, 1)
	assert.Equal(t, []string{"hash", "/data/viaf-20181104-clusters-marc21.xml.gz"}, runner.cmds[0].Args)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "BookkeepingFailed", entry.Data["kind"])

	loggedErr, ok := entry.Data[logrus.ErrorKey].(error)
	require.True(t, ok)
	assert.ErrorIs(t, loggedErr, tools.ErrBookkeepingFailed)
	assert.Contains(t, loggedErr.Error(), "exit")
}

func TestRecordFilesNothing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	tb, err := tools.New(testConfig(t), runner, nil, nil)
	require.NoError(t, err)

	tb.RecordFiles(context.Background())
	assert.Empty(t, runner.cmds)
}
