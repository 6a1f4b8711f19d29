// Package session scopes one batch of builds: it opens the ledger and
// metrics for a framework, runs builds strictly one after another, and
// always closes with a summary table.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/prodebench/internal/integrations"
	"github.com/danmuck/prodebench/internal/ledger"
	"github.com/danmuck/prodebench/internal/observability"
	"github.com/danmuck/prodebench/internal/runner"
)

// Preflight checks that a named container is ready to run builds.
type Preflight interface {
	EnsureRunning(ctx context.Context, container string) error
}

type Config struct {
	Framework string
	BaseDir   string
	Target    runner.Target
	Launcher  runner.Launcher
	// Stdout receives command output and the closing summary.
	Stdout io.Writer
	Stderr io.Writer
	// MetricsTextfile, when set, receives the session metrics at Close.
	MetricsTextfile string
	Preflight       Preflight
	Logger          *zerolog.Logger
	Now             func() time.Time
}

type Session struct {
	id      string
	ledger  *ledger.Ledger
	metrics *observability.BuildMetrics
	runner  *runner.Runner
	pre     Preflight
	logger  zerolog.Logger
	closed  bool
}

// chain forwards each result to every recorder in order, stopping at the
// first failure.
type chain []runner.Recorder

func (c chain) Add(r ledger.Result) error {
	for _, rec := range c {
		if err := rec.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// Open acquires the session's ledger and wires a runner to it.
func Open(cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.Framework) == "" {
		return nil, errors.New("session framework is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	id := uuid.NewString()
	logger := base.With().Str("session", id).Logger()

	l, err := ledger.Open(ledger.Path(cfg.BaseDir, cfg.Framework),
		ledger.WithConsole(cfg.Stdout),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	metrics := observability.NewBuildMetrics(cfg.Framework, cfg.MetricsTextfile)

	r, err := runner.New(runner.Config{
		Framework: cfg.Framework,
		BaseDir:   cfg.BaseDir,
		Target:    cfg.Target,
		Launcher:  cfg.Launcher,
		Stdout:    cfg.Stdout,
		Stderr:    cfg.Stderr,
		Logger:    &logger,
		Now:       cfg.Now,
	}, chain{l, metrics})
	if err != nil {
		return nil, errors.Join(err, l.Close())
	}

	logger.Info().Str("framework", cfg.Framework).Msg("session opened")
	return &Session{
		id:      id,
		ledger:  l,
		metrics: metrics,
		runner:  r,
		pre:     cfg.Preflight,
		logger:  logger,
	}, nil
}

// Run opens a session, hands it to fn, and closes it on every exit path.
func Run(ctx context.Context, cfg Config, fn func(context.Context, *Session) error) (err error) {
	s, err := Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return fn(ctx, s)
}

func (s *Session) ID() string { return s.id }

// Results returns the rows recorded during this session.
func (s *Session) Results() []ledger.Result {
	return s.ledger.Results()
}

// Build runs one command for project and returns its exit status. Nothing
// is started once the session is closed.
func (s *Session) Build(ctx context.Context, project, command string) (int, error) {
	if s.closed {
		return 0, ledger.ErrClosed
	}
	return s.runner.Build(ctx, project, command)
}

// BuildAll builds every example the integration discovers, in discovery
// order. When only is non-empty just that example is built. Non-zero exits
// are recorded and the batch carries on; so does an example the integration
// has no command for, which is logged and skipped.
func (s *Session) BuildAll(ctx context.Context, it integrations.Integration, only string) error {
	if it == nil {
		return errors.New("session integration is required")
	}
	logger := s.logger.With().Str("integration", it.Metadata().ID).Logger()

	if s.pre != nil && it.Container() != "" {
		if err := s.pre.EnsureRunning(ctx, it.Container()); err != nil {
			return fmt.Errorf("preflight: %w", err)
		}
	}

	built, failed, skipped := 0, 0, 0
	for example, err := range it.Examples() {
		if err != nil {
			return fmt.Errorf("discover %s examples: %w", it.Metadata().ID, err)
		}
		if only != "" && example != only {
			continue
		}
		command, err := it.BuildCommand(example)
		if err != nil {
			skipped++
			logger.Error().Err(err).Str("project", example).Msg("no build command, skipping")
			continue
		}
		code, err := s.Build(ctx, example, command)
		if err != nil {
			return err
		}
		built++
		if code != 0 {
			failed++
		}
	}
	if only != "" && built == 0 && skipped == 0 {
		return fmt.Errorf("example %q not found for %s", only, it.Metadata().ID)
	}
	logger.Info().Int("built", built).Int("failed", failed).Int("skipped", skipped).Msg("batch complete")
	return nil
}

// Close prints the summary, closes the ledger and writes metrics. Calls
// after the first are no-ops.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := errors.Join(s.ledger.Close(), s.metrics.WriteTextfile())
	s.logger.Info().Int("results", len(s.ledger.Results())).Msg("session closed")
	return err
}
