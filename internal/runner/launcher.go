package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
)

// Process is a started command whose output streams are read by the caller.
//
// Both streams must be drained before Wait is called.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	// Wait returns the exit status. A process killed by a signal reports the
	// negated signal number. err is only set when no status is available.
	Wait() (int, error)
}

// Launcher starts processes.
type Launcher interface {
	Start(ctx context.Context, argv []string) (Process, error)
}

// ExecLauncher starts processes on the local host.
type ExecLauncher struct{}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
}

func (ExecLauncher) Start(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	// #nosec G204 -- argv is built from integration config
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	// Start closes the parent's copy of each pipe's write end, so readers
	// see EOF as soon as the child exits.
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, err
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal()), nil
	}
	return exitErr.ExitCode(), nil
}
