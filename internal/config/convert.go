package config

import (
	"time"

	"github.com/danmuck/prodebench/internal/integrations"
	"github.com/danmuck/prodebench/internal/runner"
)

// Overrides converts an [integrations.<id>] table.
func (c IntegrationConfig) Overrides() integrations.Overrides {
	return integrations.Overrides{
		Name:                 c.Name,
		Description:          c.Description,
		Container:            c.Container,
		ExamplesDir:          c.ExamplesDir,
		ContainerExamplesDir: c.ContainerExamplesDir,
		Rules: integrations.Rules{
			ExcludedDirs: c.ExcludedDirs,
			AnyFiles:     c.AnyFiles,
			AllFiles:     c.AllFiles,
			PathContains: c.PathContains,
		},
		Projects: c.Projects,
		Command:  c.Command,
	}
}

// Registry returns the built-in integrations with every configured table
// applied in id order.
func (c Config) Registry() (*integrations.Registry, error) {
	reg := integrations.Defaults(c.BaseDir)
	for _, id := range c.IntegrationIDs() {
		if err := reg.Apply(c.BaseDir, id, c.Integrations[id].Overrides()); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Launcher returns the process launcher builds use: ssh when configured,
// local exec otherwise.
func (c Config) Launcher() runner.Launcher {
	if !c.sshEnabled {
		return runner.ExecLauncher{}
	}
	var timeout time.Duration
	if c.SSH.Timeout != "" {
		timeout, _ = time.ParseDuration(c.SSH.Timeout)
	}
	return runner.SSHLauncher{
		Host:                        c.SSH.Host,
		Port:                        c.SSH.Port,
		User:                        c.SSH.User,
		KeyPath:                     c.SSH.KeyPath,
		KnownHostsPath:              c.SSH.KnownHosts,
		InsecureSkipHostKeyChecking: c.SSH.Insecure,
		Timeout:                     timeout,
	}
}

// PreflightHost returns the docker daemon that owns the build containers.
// ok is false when builds run over ssh and docker.host is unset: the local
// daemon is not the one running them.
func (c Config) PreflightHost() (host string, ok bool) {
	if c.Docker.Host != "" {
		return c.Docker.Host, true
	}
	return "", !c.sshEnabled
}
