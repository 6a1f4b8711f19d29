package integrations

import (
	"iter"
	"path/filepath"

	"github.com/danmuck/prodebench/internal/scan"
)

// ContainerExamplesDir is where examples volumes are mounted by default.
const ContainerExamplesDir = "/pdbench/examples"

// Metadata is integration identity and display data.
type Metadata struct {
	ID          string
	Name        string
	Description string
}

// Volume maps the host examples directory into the container.
type Volume struct {
	HostDir      string
	ContainerDir string
}

// Integration is one framework under benchmark.
type Integration interface {
	Metadata() Metadata
	// Framework names the ledger and log directory.
	Framework() string
	Container() string
	Volume() Volume
	// Examples yields the projects to build, in build order.
	Examples() iter.Seq2[string, error]
	BuildCommand(example string) (string, error)
}

// base carries the fields every integration shares.
type base struct {
	meta      Metadata
	container string
	volume    Volume
}

func newBase(baseDir string, meta Metadata, container string) base {
	return base{
		meta:      meta,
		container: container,
		volume: Volume{
			HostDir:      filepath.Join(baseDir, "data", meta.ID, "volumes", "examples"),
			ContainerDir: ContainerExamplesDir,
		},
	}
}

func (b base) Metadata() Metadata { return b.meta }
func (b base) Framework() string  { return b.meta.ID }
func (b base) Container() string  { return b.container }
func (b base) Volume() Volume     { return b.volume }

// discover scans the host examples dir with p.
func (b base) discover(p scan.Predicate) iter.Seq2[string, error] {
	return scan.Dir(b.volume.HostDir, p)
}

// containerPath joins example onto the container examples dir.
func (b base) containerPath(example string) string {
	return b.volume.ContainerDir + "/" + filepath.ToSlash(example)
}

// fixed yields projects without touching the filesystem.
func fixed(projects ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, p := range projects {
			if !yield(p, nil) {
				return
			}
		}
	}
}
