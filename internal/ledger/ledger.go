// Package ledger records build results in an append-only CSV file.
//
// Every Add is written and synced before it returns, so a crash loses at
// most the build that was in flight. Reopening an existing ledger appends
// after its content without repeating the header.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/prodebench/internal/table"
)

var (
	ErrClosed    = errors.New("ledger is closed")
	ErrBadHeader = errors.New("ledger header mismatch")
)

// Path returns the ledger location for framework under baseDir.
func Path(baseDir, framework string) string {
	return filepath.Join(baseDir, "data", framework, framework+"-pdbench.csv")
}

// Ledger is an open result file plus the rows added this session.
type Ledger struct {
	path    string
	file    *os.File
	writer  *csv.Writer
	results []Result
	console io.Writer
	logger  zerolog.Logger
}

// Option customises Open.
type Option func(*Ledger)

// WithConsole sets where Close renders the summary table.
func WithConsole(w io.Writer) Option {
	return func(l *Ledger) {
		l.console = w
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// Open opens or creates the ledger at path, creating parent directories as
// needed. A missing or empty file gets the header row first.
func Open(path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		console: os.Stdout,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat ledger %s: %w", path, err)
	}

	l.file = f
	l.writer = csv.NewWriter(f)
	l.logger.Info().Str("path", path).Msg("saving results")

	if info.Size() == 0 {
		if err := l.writer.Write(Columns()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write ledger header: %w", err)
		}
		if err := l.Flush(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string {
	return l.path
}

// Add appends r to the file and to the session rows, then flushes.
func (l *Ledger) Add(r Result) error {
	if l.file == nil {
		return ErrClosed
	}
	if err := l.writer.Write(r.Row()); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	l.results = append(l.results, r)
	return l.Flush()
}

// Flush pushes buffered rows to stable storage. It is a no-op once closed.
func (l *Ledger) Flush() error {
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Results returns the rows added since Open, in insertion order.
func (l *Ledger) Results() []Result {
	return slices.Clone(l.results)
}

// Close renders the session rows as a table and closes the file if it is
// still open.
func (l *Ledger) Close() error {
	var errs []error
	if err := Render(l.console, l.results); err != nil {
		errs = append(errs, fmt.Errorf("render summary: %w", err))
	}
	if l.file != nil {
		if err := l.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
		l.file = nil
	}
	return errors.Join(errs...)
}

// Render writes results as a summary table.
func Render(w io.Writer, results []Result) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, r.Row())
	}
	return table.Render(w, Columns(), rows)
}

// ReadAll loads every row of the ledger at path.
func ReadAll(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if !slices.Equal(header, Columns()) {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, header)
	}

	var out []Result
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read ledger line %d: %w", line, err)
		}
		res, err := parseRow(row)
		if err != nil {
			return out, fmt.Errorf("ledger line %d: %w", line, err)
		}
		out = append(out, res)
	}
}
