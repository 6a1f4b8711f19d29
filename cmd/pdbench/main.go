package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/prodebench/internal/config"
	"github.com/danmuck/prodebench/internal/docker"
	"github.com/danmuck/prodebench/internal/integrations"
	"github.com/danmuck/prodebench/internal/ledger"
	"github.com/danmuck/prodebench/internal/logging"
	"github.com/danmuck/prodebench/internal/runner"
	"github.com/danmuck/prodebench/internal/session"
	"github.com/danmuck/prodebench/internal/table"
)

const usage = `usage: pdbench [-config file] <command> [args]

commands:
  init [-force] [path]                           write a starter config
  integrations                                   list known integrations
  list <integration>                             list discovered examples
  build <integration> [-example e] [-no-preflight]
                                                 build examples and record results
  report <integration>                           print all recorded results
  status                                         show container status
`

var errUsage = errors.New("invalid usage")

type app struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer
}

func main() {
	logging.ConfigureRuntime()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	fs := flag.NewFlagSet("pdbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath+" when present)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "init":
		return a.initConfig(rest)
	case "integrations":
		return a.integrations()
	case "list":
		return a.list(rest)
	case "build":
		return a.build(ctx, rest)
	case "report":
		return a.report(rest)
	case "status":
		return a.status(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) initConfig(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	path := config.DefaultPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := config.WriteTemplate(path, *force); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "wrote config template to %s\n", path)
	return nil
}

func (a *app) load() (config.Config, *integrations.Registry, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, reg, nil
}

// integration splits a leading integration id from the remaining args so
// flags may come before or after it.
func (a *app) integration(args []string, fs *flag.FlagSet) (config.Config, integrations.Integration, error) {
	var id string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		id, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return config.Config{}, nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if id == "" && fs.NArg() > 0 {
		id = fs.Arg(0)
	}
	if id == "" {
		return config.Config{}, nil, fmt.Errorf("%w: %s needs an integration", errUsage, fs.Name())
	}
	cfg, reg, err := a.load()
	if err != nil {
		return config.Config{}, nil, err
	}
	it, err := reg.Lookup(id)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, it, nil
}

func (a *app) integrations() error {
	_, reg, err := a.load()
	if err != nil {
		return err
	}
	rows := [][]string{}
	for _, it := range reg.List() {
		meta := it.Metadata()
		rows = append(rows, []string{meta.ID, meta.Name, it.Container(), it.Volume().HostDir, meta.Description})
	}
	return table.Render(a.stdout, []string{"ID", "Name", "Container", "Examples", "Description"}, rows)
}

func (a *app) list(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	_, it, err := a.integration(args, fs)
	if err != nil {
		return err
	}
	for example, err := range it.Examples() {
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, example)
	}
	return nil
}

func (a *app) build(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	example := fs.String("example", "", "build only this example")
	noPreflight := fs.Bool("no-preflight", false, "skip the container running check")
	cfg, it, err := a.integration(args, fs)
	if err != nil {
		return err
	}

	scfg := session.Config{
		Framework:       it.Framework(),
		BaseDir:         cfg.BaseDir,
		Target:          runner.DockerExec{Container: it.Container()},
		Launcher:        cfg.Launcher(),
		Stdout:          a.stdout,
		Stderr:          a.stderr,
		MetricsTextfile: cfg.MetricsTextfile,
	}
	if !*noPreflight {
		host, ok := cfg.PreflightHost()
		if ok {
			client, err := docker.New(host)
			if err != nil {
				return err
			}
			defer client.Close()
			scfg.Preflight = client
		} else {
			log.Warn().Str("ssh_host", cfg.SSH.Host).Msg("skipping preflight: builds run over ssh and docker.host is unset")
		}
	}
	return session.Run(ctx, scfg, func(ctx context.Context, s *session.Session) error {
		return s.BuildAll(ctx, it, *example)
	})
}

func (a *app) report(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	cfg, it, err := a.integration(args, fs)
	if err != nil {
		return err
	}
	results, err := ledger.ReadAll(ledger.Path(cfg.BaseDir, it.Framework()))
	if err != nil {
		return err
	}
	return ledger.Render(a.stdout, results)
}

func (a *app) status(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	client, err := docker.New(cfg.Docker.Host)
	if err != nil {
		return err
	}
	defer client.Close()
	containers, err := client.List(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		rows = append(rows, c.Row())
	}
	return table.Render(a.stdout, docker.StatusHeaders(), rows)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "pdbench: "+format+"\n", args...)
	os.Exit(1)
}
