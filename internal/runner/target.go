package runner

import (
	"fmt"
	"strings"
)

// Target turns a shell command string into the argv that runs it.
type Target interface {
	Argv(command string) []string
	fmt.Stringer
}

// DockerExec runs commands inside an already running container.
type DockerExec struct {
	Container string
	// Docker is the client binary, "docker" when empty.
	Docker string
	// Shell interprets the command inside the container, "bash" when empty.
	Shell string
}

func (d DockerExec) Argv(command string) []string {
	return []string{
		orDefault(d.Docker, "docker"), "exec",
		"--interactive", d.Container,
		orDefault(d.Shell, "bash"), "-c", command,
	}
}

func (d DockerExec) String() string {
	return "container " + d.Container
}

// LocalShell runs commands directly on the host.
type LocalShell struct {
	// Shell is "sh" when empty.
	Shell string
}

func (l LocalShell) Argv(command string) []string {
	return []string{orDefault(l.Shell, "sh"), "-c", command}
}

func (l LocalShell) String() string {
	return "local " + orDefault(l.Shell, "sh")
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
