package process_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/bookimport/pkg/process"
)

func shell(script string) process.Command {
	return process.Cmd("sh", "-c", script)
}

func TestRunNoCommand(t *testing.T) {
	t.Parallel()

	err := process.New().Run(context.Background())
	assert.ErrorIs(t, err, process.ErrNoCommand)
}

func TestRunEmptyPath(t *testing.T) {
	t.Parallel()

	err := process.New().Run(context.Background(), process.Command{})
	assert.ErrorIs(t, err, process.ErrEmptyPath)
}

func TestRunSequential(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	run := process.New(process.WithStdout(&out))
	err := run.Run(context.Background(), shell("echo one"), shell("echo two"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestRunStopsAtFailingStage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	run := process.New(process.WithDir(dir))
	err := run.Run(context.Background(),
		shell("true"),
		shell("exit 3"),
		process.Cmd("touch", marker),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, process.ErrProcessFailed)

	exitCode, stage, ok := process.ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 3, exitCode)
	assert.Equal(t, 1, stage)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "stage after the failing one must not run")
}

func TestRunMissingExecutable(t *testing.T) {
	t.Parallel()

	err := process.New().Run(context.Background(), process.Cmd("/nonexistent/tool", "--help"))
	require.Error(t, err)

	exitCode, stage, ok := process.ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, -1, exitCode)
	assert.Equal(t, 0, stage)
}

func TestRunPiped(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	run := process.New(process.Piped(), process.WithStdout(&out))
	err := run.Run(context.Background(),
		shell("printf 'b\\na\\nc\\n'"),
		process.Cmd("sort"),
		process.Cmd("head", "-n", 2),
	)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out.String())
}

func TestRunPipedStdin(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	run := process.New(process.Piped(), process.WithStdin(strings.NewReader("c\na\nb\n")), process.WithStdout(&out))
	err := run.Run(context.Background(), process.Cmd("sort"), process.Cmd("tail", "-n", 1))
	require.NoError(t, err)
	assert.Equal(t, "c\n", out.String())
}

func TestRunStderr(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	run := process.New(process.WithStdout(&out), process.WithStderr(&errOut))
	err := run.Run(context.Background(), shell("echo rows; echo 'bad record' >&2"))
	require.NoError(t, err)
	assert.Equal(t, "rows\n", out.String())
	assert.Equal(t, "bad record\n", errOut.String())
}

func TestRunPipedFailure(t *testing.T) {
	t.Parallel()

	run := process.New(process.Piped(), process.WithStdout(&bytes.Buffer{}))
	err := run.Run(context.Background(),
		shell("echo data"),
		shell("cat > /dev/null; exit 4"),
		process.Cmd("cat"),
	)
	require.Error(t, err)

	exitCode, stage, ok := process.ExitCode(err)
	require.True(t, ok)
	assert.Equal(t, 4, exitCode)
	assert.Equal(t, 1, stage)
}

func TestRunLogsOutput(t *testing.T) {
	t.Parallel()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	run := process.New(process.WithLogger(logger))
	err := run.Run(context.Background(), shell("echo first; echo second >&2; printf last"))
	require.NoError(t, err)

	var lines []string
	for _, entry := range hook.AllEntries() {
		if _, ok := entry.Data["stream"]; ok {
			lines = append(lines, entry.Message)
		}
	}
	assert.ElementsMatch(t, []string{"first", "second", "last"}, lines)
}

func TestRunEnv(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	run := process.New(process.WithEnv("BOOKIMPORT_TEST=hello"), process.WithStdout(&out))
	err := run.Run(context.Background(), shell("echo $BOOKIMPORT_TEST"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.String())
}

func TestRunCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := process.New().Run(ctx, shell("sleep 10"))
	assert.ErrorIs(t, err, process.ErrProcessFailed)
}
