package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/prodebench/internal/ledger"
)

// LogTimeLayout stamps log file names, minute resolution.
const LogTimeLayout = "2006-01-02_15-04"

// Recorder receives one result per completed build.
type Recorder interface {
	Add(ledger.Result) error
}

// Config wires a Runner. Zero values fall back to the host process
// environment: ExecLauncher, os.Stdout/os.Stderr, the global logger and
// time.Now.
type Config struct {
	// Framework names the log directory, logs/<Framework> under BaseDir.
	Framework string
	BaseDir   string
	Target    Target
	Launcher  Launcher
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *zerolog.Logger
	Now       func() time.Time
}

// Runner executes builds one at a time; it is not safe for concurrent use.
type Runner struct {
	cfg      Config
	recorder Recorder
	logger   zerolog.Logger
}

func New(cfg Config, recorder Recorder) (*Runner, error) {
	if strings.TrimSpace(cfg.Framework) == "" {
		return nil, errors.New("runner framework is required")
	}
	if cfg.Target == nil {
		return nil, errors.New("runner target is required")
	}
	if recorder == nil {
		return nil, errors.New("runner recorder is required")
	}
	if cfg.Launcher == nil {
		cfg.Launcher = ExecLauncher{}
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Runner{
		cfg:      cfg,
		recorder: recorder,
		logger:   logger.With().Str("framework", cfg.Framework).Logger(),
	}, nil
}

// LogDir is where per-run log files are written.
func (r *Runner) LogDir() string {
	return filepath.Join(r.cfg.BaseDir, "logs", r.cfg.Framework)
}

// LogPrefix returns the log-file prefix for project started at t, relative
// to the base directory.
func LogPrefix(framework, project string, t time.Time) string {
	return filepath.Join("logs", framework, sanitize(project)+"-"+t.Format(LogTimeLayout))
}

func sanitize(project string) string {
	project = strings.ReplaceAll(project, "/", "_")
	project = strings.ReplaceAll(project, string(filepath.Separator), "_")
	if project == "" {
		return "root"
	}
	return project
}

// Build runs command for project through the configured target, tees its
// output, and records one ledger.Result. The returned code is the command's
// exit status.
func (r *Runner) Build(ctx context.Context, project, command string) (int, error) {
	logger := r.logger.With().Str("project", project).Logger()
	logger.Info().Str("target", r.cfg.Target.String()).Msg("building project")

	if err := ensureDir(logger, r.LogDir()); err != nil {
		return 0, err
	}

	argv := r.cfg.Target.Argv(command)
	start := r.cfg.Now()
	prefix := LogPrefix(r.cfg.Framework, project, start)

	stdoutLog, err := openLog(filepath.Join(r.cfg.BaseDir, prefix+".stdout"))
	if err != nil {
		return 0, err
	}
	defer stdoutLog.Close()
	stderrLog, err := openLog(filepath.Join(r.cfg.BaseDir, prefix+".stderr"))
	if err != nil {
		return 0, err
	}
	defer stderrLog.Close()

	proc, err := r.cfg.Launcher.Start(ctx, argv)
	if err != nil {
		return 0, fmt.Errorf("spawn %s: %w", shellJoin(argv), err)
	}

	var sinks errgroup.Group
	sinks.Go(func() error {
		return sink(proc.Stdout(), io.MultiWriter(r.cfg.Stdout, stdoutLog))
	})
	sinks.Go(func() error {
		return sink(proc.Stderr(), io.MultiWriter(r.cfg.Stderr, stderrLog))
	})
	sinkErr := sinks.Wait()

	code, err := proc.Wait()
	if err != nil {
		return code, fmt.Errorf("wait %s: %w", shellJoin(argv), err)
	}
	duration := r.cfg.Now().Sub(start).Truncate(time.Second)

	if sinkErr != nil {
		logger.Warn().Err(sinkErr).Str("log_prefix", prefix).Msg("build output not fully captured")
	}
	if code != 0 {
		logger.Error().
			Int("return_code", code).
			Str("command", shellJoin(argv)).
			Msg("failed to execute command")
	}

	result := ledger.Result{
		Project:    project,
		ReturnCode: code,
		StartTime:  start.Truncate(time.Second),
		Duration:   duration,
		LogPrefix:  prefix,
	}
	if err := r.recorder.Add(result); err != nil {
		return code, fmt.Errorf("record %s: %w", project, err)
	}
	logger.Debug().
		Int("return_code", code).
		Str("duration", ledger.FormatDuration(duration)).
		Msg("build recorded")
	return code, nil
}

// sink copies src into dst. After a write failure it keeps reading src so
// the producer never blocks on a full pipe.
func sink(src io.Reader, dst io.Writer) error {
	if _, err := io.Copy(dst, src); err != nil {
		_, _ = io.Copy(io.Discard, src)
		return err
	}
	return nil
}

func ensureDir(logger zerolog.Logger, dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	logger.Info().Str("dir", dir).Msg("creating directory")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return nil
}

func openLog(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open build log: %w", err)
	}
	return f, nil
}
