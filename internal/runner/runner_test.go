package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/prodebench/internal/ledger"
	"github.com/danmuck/prodebench/internal/testutil/testlog"
)

type memRecorder struct {
	results []ledger.Result
	err     error
}

func (m *memRecorder) Add(r ledger.Result) error {
	if m.err != nil {
		return m.err
	}
	m.results = append(m.results, r)
	return nil
}

type harness struct {
	runner *Runner
	rec    *memRecorder
	base   string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	diag   *bytes.Buffer
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		rec:    &memRecorder{},
		base:   t.TempDir(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		diag:   &bytes.Buffer{},
	}
	logger := zerolog.New(h.diag)
	cfg := Config{
		Framework: "chisel",
		BaseDir:   h.base,
		Target:    LocalShell{},
		Stdout:    h.stdout,
		Stderr:    h.stderr,
		Logger:    &logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := New(cfg, h.rec)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	h.runner = r
	return h
}

func (h *harness) readLog(t *testing.T, prefix, ext string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.base, prefix+ext))
	if err != nil {
		t.Fatalf("read %s log: %v", ext, err)
	}
	return string(data)
}

func TestBuildSuccessTeesBothStreams(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, nil)

	code, err := h.runner.Build(context.Background(), "a/bsysi_x", "echo to-out; echo to-err >&2")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if code != 0 {
		t.Fatalf("unexpected code: %d", code)
	}
	if len(h.rec.results) != 1 {
		t.Fatalf("expected one result, got %d", len(h.rec.results))
	}
	res := h.rec.results[0]
	if res.Project != "a/bsysi_x" || res.ReturnCode != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.HasPrefix(res.LogPrefix, filepath.Join("logs", "chisel", "a_bsysi_x-")) {
		t.Fatalf("unexpected log prefix: %q", res.LogPrefix)
	}

	if got := h.readLog(t, res.LogPrefix, ".stdout"); got != "to-out\n" {
		t.Fatalf("unexpected stdout log: %q", got)
	}
	if got := h.readLog(t, res.LogPrefix, ".stderr"); got != "to-err\n" {
		t.Fatalf("unexpected stderr log: %q", got)
	}
	if h.stdout.String() != "to-out\n" || h.stderr.String() != "to-err\n" {
		t.Fatalf("console mismatch: stdout=%q stderr=%q", h.stdout.String(), h.stderr.String())
	}
	if strings.Contains(h.diag.String(), `"level":"error"`) {
		t.Fatalf("unexpected error diagnostic: %s", h.diag.String())
	}
}

func TestBuildNonZeroExitIsRecordedNotRaised(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, nil)

	code, err := h.runner.Build(context.Background(), "p", "exit 17")
	if err != nil {
		t.Fatalf("non-zero exit must not fail build: %v", err)
	}
	if code != 17 {
		t.Fatalf("unexpected code: %d", code)
	}
	if len(h.rec.results) != 1 || h.rec.results[0].ReturnCode != 17 {
		t.Fatalf("unexpected results: %+v", h.rec.results)
	}
	if !strings.Contains(h.diag.String(), `"level":"error"`) {
		t.Fatalf("expected error diagnostic, got: %s", h.diag.String())
	}
	if !strings.Contains(h.diag.String(), `"return_code":17`) {
		t.Fatalf("diagnostic missing return code: %s", h.diag.String())
	}
}

func TestBuildDrainsBothStreamsWithoutDeadlock(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, nil)

	// Far more than a pipe buffer on stderr before anything reaches stdout.
	script := `i=0; while [ $i -lt 20000 ]; do echo "err line $i" >&2; i=$((i+1)); done; echo done`

	done := make(chan error, 1)
	go func() {
		_, err := h.runner.Build(context.Background(), "p", script)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("build: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatalf("build did not finish; streams likely deadlocked")
	}

	if got := strings.Count(h.stderr.String(), "\n"); got != 20000 {
		t.Fatalf("expected 20000 stderr lines, got %d", got)
	}
	if h.stdout.String() != "done\n" {
		t.Fatalf("unexpected stdout: %q", h.stdout.String())
	}
}

func TestBuildDurationTruncatedToSeconds(t *testing.T) {
	testlog.Start(t)
	t0 := time.Date(2024, 3, 9, 14, 5, 7, 250_000_000, time.Local)
	ticks := []time.Time{t0, t0.Add(1400 * time.Millisecond)}
	h := newHarness(t, func(cfg *Config) {
		cfg.Now = func() time.Time {
			next := ticks[0]
			if len(ticks) > 1 {
				ticks = ticks[1:]
			}
			return next
		}
	})

	if _, err := h.runner.Build(context.Background(), "p1", "true"); err != nil {
		t.Fatalf("build: %v", err)
	}
	res := h.rec.results[0]
	if res.Duration != time.Second {
		t.Fatalf("unexpected duration: %v", res.Duration)
	}
	if got := ledger.FormatDuration(res.Duration); got != "0:00:01" {
		t.Fatalf("unexpected formatted duration: %q", got)
	}
	if res.StartTime.Nanosecond() != 0 {
		t.Fatalf("start time not truncated: %v", res.StartTime)
	}
	want := filepath.Join("logs", "chisel", "p1-2024-03-09_14-05")
	if res.LogPrefix != want {
		t.Fatalf("unexpected log prefix: %q want %q", res.LogPrefix, want)
	}
}

func TestBuildSpawnFailureRecordsNothing(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Target = LocalShell{Shell: filepath.Join(t.TempDir(), "missing-shell")}
	})

	if _, err := h.runner.Build(context.Background(), "p", "true"); err == nil {
		t.Fatalf("expected spawn failure")
	}
	if len(h.rec.results) != 0 {
		t.Fatalf("no result may be recorded on spawn failure: %+v", h.rec.results)
	}
}

func TestBuildRecorderFailurePropagates(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, nil)
	h.rec.err = errors.New("disk full")

	code, err := h.runner.Build(context.Background(), "p", "exit 3")
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected recorder error, got %v", err)
	}
	if code != 3 {
		t.Fatalf("exit code should still be reported: %d", code)
	}
}

func TestBuildLogsAppendAcrossRunsInSameMinute(t *testing.T) {
	testlog.Start(t)
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local)
	h := newHarness(t, func(cfg *Config) {
		cfg.Now = func() time.Time { return now }
	})

	for _, word := range []string{"first", "second"} {
		if _, err := h.runner.Build(context.Background(), "p", "echo "+word); err != nil {
			t.Fatalf("build: %v", err)
		}
	}
	got := h.readLog(t, h.rec.results[1].LogPrefix, ".stdout")
	if got != "first\nsecond\n" {
		t.Fatalf("unexpected appended log: %q", got)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	testlog.Start(t)
	if _, err := New(Config{Target: LocalShell{}}, &memRecorder{}); err == nil {
		t.Fatalf("expected missing framework error")
	}
	if _, err := New(Config{Framework: "x"}, &memRecorder{}); err == nil {
		t.Fatalf("expected missing target error")
	}
	if _, err := New(Config{Framework: "x", Target: LocalShell{}}, nil); err == nil {
		t.Fatalf("expected missing recorder error")
	}
}
