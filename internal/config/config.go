package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "pdbench.toml"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// BaseDir holds data/ and logs/. Relative values resolve against the
	// config file's directory.
	BaseDir         string                       `toml:"base_dir"`
	MetricsTextfile string                       `toml:"metrics_textfile"`
	Docker          DockerConfig                 `toml:"docker"`
	SSH             SSHConfig                    `toml:"ssh"`
	Integrations    map[string]IntegrationConfig `toml:"integrations"`

	// sshEnabled is set when the file carries an [ssh] table.
	sshEnabled bool
}

type DockerConfig struct {
	Host string `toml:"host"`
}

// SSHConfig points builds at a remote docker host.
type SSHConfig struct {
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	User       string `toml:"user"`
	KeyPath    string `toml:"key_path"`
	KnownHosts string `toml:"known_hosts"`
	Insecure   bool   `toml:"insecure"`
	Timeout    string `toml:"timeout"`
}

type IntegrationConfig struct {
	Name                 string   `toml:"name"`
	Description          string   `toml:"description"`
	Container            string   `toml:"container"`
	ExamplesDir          string   `toml:"examples_dir"`
	ContainerExamplesDir string   `toml:"container_examples_dir"`
	ExcludedDirs         []string `toml:"excluded_dirs"`
	AnyFiles             []string `toml:"any_files"`
	AllFiles             []string `toml:"all_files"`
	PathContains         []string `toml:"path_contains"`
	Projects             []string `toml:"projects"`
	Command              string   `toml:"command"`
}

// Default is the configuration used without a file.
func Default() Config {
	return Config{BaseDir: "."}
}

// Load reads path over the defaults. An empty path loads DefaultPath when it
// exists and the defaults otherwise.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			return finish(cfg, ".")
		}
		path = DefaultPath
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("%w: unknown key %s in %s", ErrInvalidConfig, strings.Join(keys, ", "), path)
	}
	cfg.sshEnabled = meta.IsDefined("ssh")
	return finish(cfg, filepath.Dir(path))
}

func finish(cfg Config, dir string) (Config, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		cfg.BaseDir = "."
	}
	cfg.BaseDir = resolve(dir, cfg.BaseDir)
	if cfg.MetricsTextfile != "" {
		cfg.MetricsTextfile = resolve(dir, cfg.MetricsTextfile)
	}
	cfg.SSH.KeyPath = expandHome(cfg.SSH.KeyPath)
	cfg.SSH.KnownHosts = expandHome(cfg.SSH.KnownHosts)
	for id, it := range cfg.Integrations {
		if it.ExamplesDir != "" {
			it.ExamplesDir = resolve(dir, it.ExamplesDir)
			cfg.Integrations[id] = it
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	abs, err := filepath.Abs(filepath.Join(dir, path))
	if err != nil {
		return filepath.Join(dir, path)
	}
	return abs
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// SSHEnabled reports whether builds run over ssh.
func (c Config) SSHEnabled() bool { return c.sshEnabled }

// IntegrationIDs returns the configured integration ids in order.
func (c Config) IntegrationIDs() []string {
	ids := make([]string, 0, len(c.Integrations))
	for id := range c.Integrations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func Validate(cfg Config) error {
	if cfg.sshEnabled {
		if err := validateSSH(cfg.SSH); err != nil {
			return err
		}
	}
	for _, id := range cfg.IntegrationIDs() {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: integrations: empty id", ErrInvalidConfig)
		}
		it := cfg.Integrations[id]
		if strings.ContainsAny(it.Container, " \t\n") {
			return fmt.Errorf("%w: integrations.%s.container: %q contains whitespace", ErrInvalidConfig, id, it.Container)
		}
		if it.ContainerExamplesDir != "" && !strings.HasPrefix(it.ContainerExamplesDir, "/") {
			return fmt.Errorf("%w: integrations.%s.container_examples_dir must be absolute", ErrInvalidConfig, id)
		}
	}
	return nil
}

func validateSSH(cfg SSHConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("%w: ssh.host is required", ErrInvalidConfig)
	}
	if cfg.Port != "" {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%w: ssh.port: %q is not a port", ErrInvalidConfig, cfg.Port)
		}
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return fmt.Errorf("%w: ssh.timeout: %v", ErrInvalidConfig, err)
		}
	}
	// insecure only skips host key checking; a key is always needed.
	if strings.TrimSpace(cfg.KeyPath) == "" {
		return fmt.Errorf("%w: ssh.key_path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.User) == "" {
		return fmt.Errorf("%w: ssh.user is required", ErrInvalidConfig)
	}
	return nil
}
