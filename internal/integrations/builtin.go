package integrations

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Chisel builds examples through the wrapper script copied into its volume.
type Chisel struct {
	base
}

func NewChisel(baseDir string) *Chisel {
	return &Chisel{base: newBase(baseDir, Metadata{
		ID:          "chisel",
		Name:        "Chisel",
		Description: "Chisel program reducer, bsysi_ build-system integrations and chisel.mk examples",
	}, "pdb-chisel")}
}

func (c *Chisel) Rules() Rules {
	return Rules{
		Root:         absOrSelf(c.volume.HostDir),
		ExcludedDirs: []string{"lib", "original", "chisel_files", ".git"},
		PathContains: []string{"bsysi_"},
		AnyFiles:     []string{"chisel.mk"},
	}
}

func (c *Chisel) Examples() iter.Seq2[string, error] {
	return c.discover(c.Rules())
}

func (c *Chisel) BuildCommand(example string) (string, error) {
	return c.volume.ContainerDir + "/pdbench_wrapper.sh " + example, nil
}

// Occam builds examples that carry both a Makefile and build.sh.
type Occam struct {
	base
}

func NewOccam(baseDir string) *Occam {
	return &Occam{base: newBase(baseDir, Metadata{
		ID:          "occam",
		Name:        "OCCAM",
		Description: "OCCAM whole-program partial evaluator examples",
	}, "pdb-occam")}
}

func (o *Occam) Rules() Rules {
	return Rules{
		Root:               absOrSelf(o.volume.HostDir),
		ExcludedSubstrings: []string{"darwin", "freebsd"},
		AllFiles:           []string{"build.sh", "Makefile"},
	}
}

func (o *Occam) Examples() iter.Seq2[string, error] {
	return o.discover(o.Rules())
}

func (o *Occam) BuildCommand(example string) (string, error) {
	return fmt.Sprintf("cd %s && make && ./build.sh", o.containerPath(example)), nil
}

// Razor drives the razor python pipeline present in each example.
type Razor struct {
	base
}

func NewRazor(baseDir string) *Razor {
	return &Razor{base: newBase(baseDir, Metadata{
		ID:          "razor",
		Name:        "RAZOR",
		Description: "RAZOR trace-based binary debloating examples",
	}, "pdb-razor")}
}

func (r *Razor) Rules() Rules {
	return Rules{
		Root:     absOrSelf(r.volume.HostDir),
		AnyFiles: []string{"run_razor.py", "debloat_simple.py"},
	}
}

func (r *Razor) Examples() iter.Seq2[string, error] {
	return r.discover(r.Rules())
}

// demoTraceArgs holds the two trace invocations for each debloat_simple demo.
var demoTraceArgs = map[string][2]string{
	"simple-demo":    {"-a 1 -b y", "-a 0 -b y"},
	"heuristic-demo": {"-a 2 -b 1", "-a 3 -b 1"},
}

func (r *Razor) BuildCommand(example string) (string, error) {
	cd := "cd " + r.containerPath(example)
	hostDir := filepath.Join(r.volume.HostDir, filepath.FromSlash(example))

	if args, ok := demoTraceArgs[example]; ok && fileExists(filepath.Join(hostDir, "debloat_simple.py")) {
		steps := []string{
			cd,
			"python debloat_simple.py -c trace " + args[0],
			"python debloat_simple.py -c trace " + args[1],
			"python debloat_simple.py -c merge_log",
			"python debloat_simple.py -c dump_inst",
			"python debloat_simple.py -c instrument",
			"python debloat_simple.py -c rewrite",
		}
		return strings.Join(steps, " && "), nil
	}
	// Every other example runs the run_razor.py pipeline; a missing script
	// shows up as a failed build in the ledger.
	steps := []string{
		cd,
		"python run_razor.py train",
		"python run_razor.py debloat",
		"python run_razor.py test",
		"python run_razor.py extend_debloat 1",
	}
	return strings.Join(steps, " && "), nil
}

// Piecewise builds the core utilities as a single project.
type Piecewise struct {
	base
}

func NewPiecewise(baseDir string) *Piecewise {
	return &Piecewise{base: newBase(baseDir, Metadata{
		ID:          "piecewise",
		Name:        "Piecewise",
		Description: "Piecewise compiler/loader debloating of coreutils",
	}, "pdb-piecewise")}
}

func (p *Piecewise) Examples() iter.Seq2[string, error] {
	return fixed("all")
}

func (p *Piecewise) BuildCommand(string) (string, error) {
	return p.volume.ContainerDir + "/build-core-utils.sh", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func absOrSelf(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
