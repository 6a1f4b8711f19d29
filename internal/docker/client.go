// Package docker checks benchmark container state through the docker API.
//
// Container lifecycle stays with the operator; this package only reads.
package docker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
)

var (
	ErrContainerNotFound   = errors.New("container not found")
	ErrContainerNotRunning = errors.New("container not running")
)

// API is the subset of the docker client used here.
type API interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	Close() error
}

// Client wraps the Docker SDK client.
type Client struct {
	api API
}

// New creates a client using environment defaults, overridden by host when set.
func New(host string) (*Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Client{api: inner}, nil
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// EnsureRunning fails unless the named container exists and is running.
func (c *Client) EnsureRunning(ctx context.Context, name string) error {
	if c == nil || c.api == nil {
		return fmt.Errorf("docker client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrContainerNotFound, name)
		}
		return fmt.Errorf("inspect container %s: %w", name, err)
	}
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		status := "unknown"
		if info.ContainerJSONBase != nil && info.State != nil {
			status = info.State.Status
		}
		return fmt.Errorf("%w: %s (%s)", ErrContainerNotRunning, name, status)
	}
	return nil
}

// Status is one row of the container status listing.
type Status struct {
	Image     string
	Container string
	State     string
}

// Row renders s for the status table.
func (s Status) Row() []string {
	return []string{s.Image, s.Container, s.State}
}

// StatusHeaders names the Row columns.
func StatusHeaders() []string {
	return []string{"Image", "Container", "Status"}
}

// List returns every container, running or not, ordered by name.
func (c *Client) List(ctx context.Context) ([]Status, error) {
	if c == nil || c.api == nil {
		return nil, fmt.Errorf("docker client not initialized")
	}
	containers, err := c.api.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]Status, 0, len(containers))
	for _, ctr := range containers {
		names := make([]string, 0, len(ctr.Names))
		for _, n := range ctr.Names {
			names = append(names, strings.TrimPrefix(n, "/"))
		}
		out = append(out, Status{
			Image:     ctr.Image,
			Container: strings.Join(names, ","),
			State:     ctr.State,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Container < out[j].Container
	})
	return out, nil
}

// Close releases resources held by the Docker client.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}
