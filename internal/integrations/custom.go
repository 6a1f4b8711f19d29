package integrations

import (
	"errors"
	"iter"
	"strings"
)

// Overrides adjusts a registered integration or defines a new one. Empty
// fields keep the current value.
type Overrides struct {
	Name                 string
	Description          string
	Container            string
	ExamplesDir          string
	ContainerExamplesDir string
	// Rules replaces the discovery predicate when it has any inclusion.
	Rules Rules
	// Projects replaces discovery with a fixed project list.
	Projects []string
	// Command is a template; {example} and {examples} expand to the project
	// and the container examples dir.
	Command string
}

func (o Overrides) replacesBehaviour() bool {
	return !o.Rules.Empty() || len(o.Projects) > 0 || strings.TrimSpace(o.Command) != ""
}

var ErrIncompleteCustom = errors.New("custom integration needs a command and rules or projects")

func (b *base) apply(o Overrides) {
	if v := strings.TrimSpace(o.Name); v != "" {
		b.meta.Name = v
	}
	if v := strings.TrimSpace(o.Description); v != "" {
		b.meta.Description = v
	}
	if v := strings.TrimSpace(o.Container); v != "" {
		b.container = v
	}
	if v := strings.TrimSpace(o.ExamplesDir); v != "" {
		b.volume.HostDir = v
	}
	if v := strings.TrimSpace(o.ContainerExamplesDir); v != "" {
		b.volume.ContainerDir = strings.TrimSuffix(v, "/")
	}
}

// Custom is an integration defined by configuration, optionally layered over
// a built-in whose discovery or command it keeps when not replaced.
type Custom struct {
	base
	rules    Rules
	projects []string
	command  string
	fallback Integration
}

func newCustom(b base, o Overrides, fallback Integration) (*Custom, error) {
	c := &Custom{
		base:     b,
		rules:    o.Rules,
		projects: append([]string(nil), o.Projects...),
		command:  strings.TrimSpace(o.Command),
		fallback: fallback,
	}
	if fallback == nil && (c.command == "" || (c.rules.Empty() && len(c.projects) == 0)) {
		return nil, ErrIncompleteCustom
	}
	return c, nil
}

func (c *Custom) Rules() Rules {
	r := c.rules
	r.Root = absOrSelf(c.volume.HostDir)
	return r
}

func (c *Custom) Examples() iter.Seq2[string, error] {
	switch {
	case len(c.projects) > 0:
		return fixed(c.projects...)
	case !c.rules.Empty():
		return c.discover(c.Rules())
	default:
		return c.fallback.Examples()
	}
}

func (c *Custom) BuildCommand(example string) (string, error) {
	if c.command == "" {
		return c.fallback.BuildCommand(example)
	}
	return strings.NewReplacer(
		"{example}", example,
		"{examples}", c.volume.ContainerDir,
	).Replace(c.command), nil
}
