package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Predicate decides whether a directory is a project.
//
// dir is the directory path as seen by the scanner's filesystem and files
// holds the names of the regular files directly inside it.
type Predicate interface {
	Match(dir string, files []string) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(dir string, files []string) bool

func (f PredicateFunc) Match(dir string, files []string) bool {
	return f(dir, files)
}

// Scanner walks directory trees on a billy filesystem.
type Scanner struct {
	fs billy.Filesystem
}

// New returns a scanner over fs.
func New(fs billy.Filesystem) *Scanner {
	return &Scanner{fs: fs}
}

// NewOS returns a scanner over the host filesystem. Paths handed to it are
// resolved against "/", so absolute paths are passed through unchanged.
func NewOS() *Scanner {
	return New(osfs.New("/"))
}

// Dir scans root on the host filesystem.
func Dir(root string, p Predicate) iter.Seq2[string, error] {
	abs, err := filepath.Abs(root)
	if err != nil {
		return func(yield func(string, error) bool) {
			yield("", fmt.Errorf("scan root %q: %w", root, err))
		}
	}
	return NewOS().Scan(abs, p)
}

// Scan yields the path, relative to root, of every directory under root that
// p matches. Descent stops at a match. Each call to the returned sequence
// walks the tree again. A traversal error is yielded once and ends the
// sequence.
func (s *Scanner) Scan(root string, p Predicate) iter.Seq2[string, error] {
	root = path.Clean(filepath.ToSlash(root))
	return func(yield func(string, error) bool) {
		s.walk(root, root, p, yield)
	}
}

// walk reports false once the consumer stops or an error was yielded.
func (s *Scanner) walk(root, dir string, p Predicate, yield func(string, error) bool) bool {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		yield("", fmt.Errorf("read dir %q: %w", dir, err))
		return false
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	files := make([]string, 0, len(entries))
	subdirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		switch {
		case entry.Mode().IsRegular():
			files = append(files, entry.Name())
		case entry.IsDir():
			subdirs = append(subdirs, entry.Name())
		}
	}

	if p.Match(dir, files) {
		return yield(relative(root, dir), nil)
	}

	for _, name := range subdirs {
		if !s.walk(root, s.fs.Join(dir, name), p, yield) {
			return false
		}
	}
	return true
}

// relative strips root from dir on a path segment boundary. Both are clean
// slash paths and dir lies under root.
func relative(root, dir string) string {
	switch {
	case dir == root:
		return ""
	case root == ".":
		return dir
	case root == "/":
		return strings.TrimPrefix(dir, "/")
	}
	return strings.TrimPrefix(dir, root+"/")
}

// All drains seq into a slice, stopping at the first error.
func All(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// IsNotExist reports whether err came from a missing directory.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
