package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/prodebench/internal/testutil/testlog"
)

func writeFiles(t *testing.T, fs billy.Filesystem, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if strings.HasSuffix(p, "/") {
			require.NoError(t, fs.MkdirAll(p, 0o755))
			continue
		}
		require.NoError(t, util.WriteFile(fs, p, []byte("x"), 0o644))
	}
}

func nameContains(sub string) Predicate {
	return PredicateFunc(func(dir string, _ []string) bool {
		return strings.Contains(dir, sub)
	})
}

func TestScanPrunesBelowFirstMatch(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, "/ex/a/bsysi_x/sub/", "/ex/a/bsysi_x/sub/bsysi_y/", "/ex/a/other/")

	got, err := All(New(fs).Scan("/ex", nameContains("bsysi_")))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/bsysi_x"}, got)
}

func TestScanPassesRegularFilesOnly(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, "/ex/p1/Makefile", "/ex/p1/build.sh", "/ex/p1/nested/", "/ex/p2/README")

	seen := map[string][]string{}
	p := PredicateFunc(func(dir string, files []string) bool {
		seen[dir] = files
		return false
	})

	got, err := All(New(fs).Scan("/ex", p))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"Makefile", "build.sh"}, seen["/ex/p1"])
	assert.Equal(t, []string{"README"}, seen["/ex/p2"])
	assert.Empty(t, seen["/ex"])
	assert.Contains(t, seen, "/ex/p1/nested")
}

func TestScanPreOrderAndRestartable(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs,
		"/ex/b/proj/Makefile",
		"/ex/a/one/Makefile",
		"/ex/a/two/Makefile",
		"/ex/c/deep/er/Makefile",
	)
	hasMakefile := PredicateFunc(func(_ string, files []string) bool {
		for _, f := range files {
			if f == "Makefile" {
				return true
			}
		}
		return false
	})

	seq := New(fs).Scan("/ex", hasMakefile)
	first, err := All(seq)
	require.NoError(t, err)
	second, err := All(seq)
	require.NoError(t, err)

	want := []string{"a/one", "a/two", "b/proj", "c/deep/er"}
	assert.Equal(t, want, first)
	assert.Equal(t, first, second)
}

func TestScanStopsWhenConsumerBreaks(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, "/ex/a/", "/ex/b/", "/ex/c/")

	calls := 0
	always := PredicateFunc(func(dir string, _ []string) bool {
		calls++
		return dir != "/ex"
	})

	for rel, err := range New(fs).Scan("/ex", always) {
		require.NoError(t, err)
		assert.Equal(t, "a", rel)
		break
	}
	assert.Equal(t, 2, calls)
}

func TestScanRootMatchYieldsEmptyPath(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, "/ex/Makefile", "/ex/sub/Makefile")

	got, err := All(New(fs).Scan("/ex", PredicateFunc(func(string, []string) bool { return true })))
	require.NoError(t, err)
	assert.Equal(t, []string{""}, got)
}

func TestScanMissingRootReturnsError(t *testing.T) {
	testlog.Start(t)
	_, err := All(New(memfs.New()).Scan("/nope", nameContains("x")))
	require.Error(t, err)
	assert.True(t, IsNotExist(err), "unexpected error: %v", err)
}

func TestDirOnHostFilesystem(t *testing.T) {
	testlog.Start(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "bsysi_x", "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))

	var dirs []string
	p := PredicateFunc(func(dir string, _ []string) bool {
		dirs = append(dirs, dir)
		return strings.Contains(dir, "bsysi_")
	})

	got, err := All(Dir(root, p))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/bsysi_x"}, got)
	for _, d := range dirs {
		assert.True(t, filepath.IsAbs(d), "predicate got non-absolute path %q", d)
	}
}

func TestScanRelativeToDotRootKeepsDotNames(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, ".hidden/bsysi_x/", "plain/bsysi_y/")

	got, err := All(New(fs).Scan(".", nameContains("bsysi_")))
	require.NoError(t, err)
	assert.Equal(t, []string{".hidden/bsysi_x", "plain/bsysi_y"}, got)
}

func TestScanRelativeStripsWholeSegments(t *testing.T) {
	testlog.Start(t)
	fs := memfs.New()
	writeFiles(t, fs, "/ex/.cfg/bsysi_x/", "/ex2/bsysi_z/")

	got, err := All(New(fs).Scan("/ex", nameContains("bsysi_")))
	require.NoError(t, err)
	assert.Equal(t, []string{".cfg/bsysi_x"}, got)

	assert.Equal(t, "", relative("/ex", "/ex"))
	assert.Equal(t, "a", relative("/", "/a"))
	assert.Equal(t, ".a/b", relative(".", ".a/b"))
}
