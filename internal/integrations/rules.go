package integrations

import (
	"path/filepath"
	"slices"
	"strings"
)

// Rules is a declarative discovery predicate:
//
//	(not excluded) AND (any AnyFiles OR all AllFiles OR any PathContains)
//
// An empty inclusion list takes no part in the OR. Paths are matched relative
// to Root when it is set, so the location of the examples dir on the host
// never influences the result.
type Rules struct {
	Root string
	// ExcludedDirs rejects a directory when any of its path segments equals
	// one of these names.
	ExcludedDirs []string
	// ExcludedSubstrings rejects a directory whose path contains any of these.
	ExcludedSubstrings []string
	AnyFiles           []string
	AllFiles           []string
	PathContains       []string
}

func (r Rules) Match(dir string, files []string) bool {
	rel := r.relative(dir)
	if r.excluded(rel) {
		return false
	}
	switch {
	case len(r.AnyFiles) > 0 && containsAny(files, r.AnyFiles):
		return true
	case len(r.AllFiles) > 0 && containsAll(files, r.AllFiles):
		return true
	case len(r.PathContains) > 0 && substringAny(rel, r.PathContains):
		return true
	}
	return false
}

// Empty reports whether r can never include a directory.
func (r Rules) Empty() bool {
	return len(r.AnyFiles) == 0 && len(r.AllFiles) == 0 && len(r.PathContains) == 0
}

func (r Rules) relative(dir string) string {
	if r.Root == "" {
		return filepath.ToSlash(dir)
	}
	rel, err := filepath.Rel(r.Root, dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	if rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (r Rules) excluded(rel string) bool {
	if substringAny(rel, r.ExcludedSubstrings) {
		return true
	}
	if len(r.ExcludedDirs) == 0 {
		return false
	}
	for _, segment := range strings.Split(rel, "/") {
		if slices.Contains(r.ExcludedDirs, segment) {
			return true
		}
	}
	return false
}

func containsAny(files, want []string) bool {
	for _, w := range want {
		if slices.Contains(files, w) {
			return true
		}
	}
	return false
}

func containsAll(files, want []string) bool {
	for _, w := range want {
		if !slices.Contains(files, w) {
			return false
		}
	}
	return true
}

func substringAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
