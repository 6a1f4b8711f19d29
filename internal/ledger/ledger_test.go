package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/prodebench/internal/testutil/testlog"
)

const header = "Project,ReturnCode,StartTime,Duration,LogPrefix"

var start = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func openTest(t *testing.T, path string) (*Ledger, *bytes.Buffer) {
	t.Helper()
	var console bytes.Buffer
	l, err := Open(path, WithConsole(&console), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return l, &console
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestAddToAbsentFileWritesHeaderAndRow(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "data", "chisel", "chisel-pdbench.csv")

	l, _ := openTest(t, path)
	require.NoError(t, l.Add(Result{
		Project:    "a/bsysi_x",
		ReturnCode: 0,
		StartTime:  start,
		Duration:   1400 * time.Millisecond,
		LogPrefix:  "logs/chisel/a_bsysi_x-2024-03-09_14-05",
	}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, header, lines[0])
	assert.Equal(t, "a/bsysi_x,0,2024-03-09 14:05:07,0:00:01,logs/chisel/a_bsysi_x-2024-03-09_14-05", lines[1])
	require.NoError(t, l.Close())
}

func TestRowsAreDurableBeforeClose(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ledger.csv")

	l, _ := openTest(t, path)
	require.NoError(t, l.Add(Result{Project: "p1", StartTime: start}))

	// The file handle is still open; another reader must already see the row.
	assert.Len(t, readLines(t, path), 2)
	require.NoError(t, l.Close())
}

func TestReopenAppendsWithoutSecondHeader(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ledger.csv")

	first, _ := openTest(t, path)
	require.NoError(t, first.Add(Result{Project: "p1", StartTime: start}))
	require.NoError(t, first.Close())

	second, _ := openTest(t, path)
	require.NoError(t, second.Add(Result{Project: "p2", ReturnCode: 1, StartTime: start}))
	require.NoError(t, second.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, 1, strings.Count(strings.Join(lines, "\n"), header))
	assert.True(t, strings.HasPrefix(lines[1], "p1,0,"))
	assert.True(t, strings.HasPrefix(lines[2], "p2,1,"))

	all, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p1", all[0].Project)
	assert.Equal(t, 1, all[1].ReturnCode)
	assert.True(t, all[1].StartTime.Equal(start))
}

func TestEmptyExistingFileGetsHeader(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ledger.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	l, _ := openTest(t, path)
	require.NoError(t, l.Close())

	assert.Equal(t, []string{header}, readLines(t, path))
}

func TestCloseRendersSessionRowsInOrder(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "ledger.csv")

	l, console := openTest(t, path)
	require.NoError(t, l.Add(Result{Project: "p1", ReturnCode: 0, StartTime: start, Duration: 2 * time.Second}))
	require.NoError(t, l.Add(Result{Project: "p2", ReturnCode: 1, StartTime: start, Duration: 5 * time.Second}))
	require.NoError(t, l.Close())

	out := console.String()
	p1 := strings.Index(out, "| p1 ")
	p2 := strings.Index(out, "| p2 ")
	require.True(t, p1 > 0 && p2 > p1, "unexpected summary:\n%s", out)
	assert.Contains(t, out, "0:00:02")
	assert.Contains(t, out, "0:00:05")

	results := l.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].Project)
	assert.Equal(t, "p2", results[1].Project)
}

func TestClosedLedger(t *testing.T) {
	testlog.Start(t)
	l, _ := openTest(t, filepath.Join(t.TempDir(), "ledger.csv"))
	require.NoError(t, l.Close())

	assert.NoError(t, l.Flush())
	assert.ErrorIs(t, l.Add(Result{Project: "late"}), ErrClosed)
	assert.NoError(t, l.Close())
}

func TestOpenFailsOnUnwritableLocation(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	_, err := Open(filepath.Join(blocker, "ledger.csv"), WithLogger(zerolog.Nop()))
	assert.Error(t, err)
}

func TestReadAllRejectsForeignHeader(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644))

	_, err := ReadAll(path)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestPath(t *testing.T) {
	assert.Equal(t, filepath.Join("base", "data", "occam", "occam-pdbench.csv"), Path("base", "occam"))
}
