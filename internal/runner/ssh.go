package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHLauncher starts processes on a remote host, typically the machine that
// runs the docker daemon owning the benchmark containers. Authentication is
// always by private key; InsecureSkipHostKeyChecking only drops the
// known_hosts check.
type SSHLauncher struct {
	Host string
	// Port defaults to 22 unless Host already carries one.
	Port       string
	User       string
	KeyPath    string
	Passphrase []byte
	// KnownHostsPath defaults to ~/.ssh/known_hosts.
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	Timeout                     time.Duration
}

// sshSignals maps RFC 4254 signal names onto local signal numbers so remote
// kills are reported like local ones.
var sshSignals = map[ssh.Signal]syscall.Signal{
	ssh.SIGABRT: syscall.SIGABRT,
	ssh.SIGALRM: syscall.SIGALRM,
	ssh.SIGFPE:  syscall.SIGFPE,
	ssh.SIGHUP:  syscall.SIGHUP,
	ssh.SIGILL:  syscall.SIGILL,
	ssh.SIGINT:  syscall.SIGINT,
	ssh.SIGKILL: syscall.SIGKILL,
	ssh.SIGPIPE: syscall.SIGPIPE,
	ssh.SIGQUIT: syscall.SIGQUIT,
	ssh.SIGSEGV: syscall.SIGSEGV,
	ssh.SIGTERM: syscall.SIGTERM,
	ssh.SIGUSR1: syscall.SIGUSR1,
	ssh.SIGUSR2: syscall.SIGUSR2,
}

type sshProcess struct {
	ctx     context.Context
	client  *ssh.Client
	session *ssh.Session
	stdout  io.Reader
	stderr  io.Reader
	stop    func() bool
}

// Validate reports the first missing connection setting.
func (l SSHLauncher) Validate() error {
	switch {
	case strings.TrimSpace(l.Host) == "":
		return errors.New("ssh: host is required")
	case strings.TrimSpace(l.User) == "":
		return errors.New("ssh: user is required")
	case strings.TrimSpace(l.KeyPath) == "":
		return errors.New("ssh: key path is required")
	}
	return nil
}

func (l SSHLauncher) Start(ctx context.Context, argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	client, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh stdout: %w", err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh stderr: %w", err)
	}
	if err := session.Start(shellJoin(argv)); err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh start: %w", err)
	}

	// Cancellation kills the remote command, then drops the connection so
	// both readers and Wait return.
	stop := context.AfterFunc(ctx, func() {
		_ = session.Signal(ssh.SIGKILL)
		client.Close()
	})
	return &sshProcess{
		ctx:     ctx,
		client:  client,
		session: session,
		stdout:  stdout,
		stderr:  stderr,
		stop:    stop,
	}, nil
}

func (p *sshProcess) Stdout() io.Reader { return p.stdout }
func (p *sshProcess) Stderr() io.Reader { return p.stderr }

func (p *sshProcess) Wait() (int, error) {
	err := p.session.Wait()
	p.stop()
	p.client.Close()

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		if sig, ok := sshSignals[ssh.Signal(exitErr.Signal())]; ok {
			return -int(sig), nil
		}
		return exitErr.ExitStatus(), nil
	case p.ctx.Err() != nil:
		// The connection was torn down by cancellation before a status
		// arrived; report it the way a locally killed process reads.
		return -int(syscall.SIGKILL), nil
	}
	return -1, fmt.Errorf("ssh wait: %w", err)
}

func (l SSHLauncher) connect(ctx context.Context) (*ssh.Client, error) {
	config, err := l.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := l.address()

	dialer := net.Dialer{Timeout: l.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func (l SSHLauncher) address() string {
	host := strings.TrimSpace(l.Host)
	if l.Port != "" {
		return net.JoinHostPort(host, l.Port)
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, "22")
}

func (l SSHLauncher) clientConfig() (*ssh.ClientConfig, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	pemBytes, err := os.ReadFile(l.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh key %s: %w", l.KeyPath, err)
	}
	var signer ssh.Signer
	if len(l.Passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pemBytes, l.Passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(pemBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("ssh key %s: %w", l.KeyPath, err)
	}

	hostKeys, err := l.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            l.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         l.Timeout,
	}, nil
}

func (l SSHLauncher) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if l.InsecureSkipHostKeyChecking {
		// #nosec G106 -- opt-in via config for lab hosts
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := strings.TrimSpace(l.KnownHostsPath)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("ssh known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("ssh known_hosts %s: %w", path, err)
	}
	return callback, nil
}
