// Package container talks to the Docker (or Podman) daemon directly for the
// things a shelled-out CLI is bad at: readiness polling, compose-service
// discovery, and image presence checks.
package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/go-connections/nat"
	"golang.org/x/term"
)

const (
	composeProjectLabel = "com.docker.compose.project"
	composeServiceLabel = "com.docker.compose.service"
)

// Client wraps the Docker/Podman API, trying Docker first then falling back
// to the Podman-compatible socket.
type Client struct {
	docker  *dockerclient.Client
	runtime string
}

func NewClient() (*Client, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err == nil {
		if _, err := cli.Ping(context.Background()); err == nil {
			return &Client{docker: cli, runtime: "docker"}, nil
		}
		cli.Close()
	}

	// Fall back to the rootless Podman socket which exposes a Docker-compatible API.
	podmanSock := fmt.Sprintf("unix:///run/user/%d/podman/podman.sock", os.Getuid())
	cli, err = dockerclient.NewClientWithOpts(
		dockerclient.WithHost(podmanSock),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("no Docker or Podman socket found: %w", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		return nil, fmt.Errorf("no Docker or Podman socket found: %w", err)
	}
	return &Client{docker: cli, runtime: "podman"}, nil
}

func (c *Client) Close() error { return c.docker.Close() }

// Runtime names the daemon that answered the socket probe: "docker" or
// "podman".
func (c *Client) Runtime() string { return c.runtime }

// Ping checks daemon reachability. Used by `run misc doctor`.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.docker.Ping(ctx)
	return err
}

// EnsureImage pulls the image if it is not available locally.
func (c *Client) EnsureImage(ctx context.Context, ref string, quiet bool) error {
	images, err := c.docker.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if len(images) > 0 {
		return nil
	}

	return c.PullImage(ctx, ref, quiet)
}

// PullImage pulls the latest version of the image.
func (c *Client) PullImage(ctx context.Context, ref string, quiet bool) error {
	fmt.Printf("+ Pulling image: %s\n", ref)
	reader, err := c.docker.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer reader.Close()

	if quiet {
		// Drain the pull output to complete the operation.
		_, err = io.Copy(io.Discard, reader)
	} else {
		isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
		err = jsonmessage.DisplayJSONMessagesStream(reader, os.Stdout, os.Stdout.Fd(), isTerminal, nil)
	}
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// Service describes one container belonging to a compose project.
type Service struct {
	ContainerID string
	Name        string
	State       string
	Ports       []string
}

// ComposeServices lists the containers of a compose project, including
// stopped ones, sorted by service name. Published ports are rendered as
// host:container pairs.
func (c *Client) ComposeServices(ctx context.Context, project string) ([]Service, error) {
	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", composeProjectLabel+"="+project),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("list compose containers: %w", err)
	}

	var services []Service
	for _, ctr := range containers {
		svc := Service{
			ContainerID: ctr.ID,
			Name:        ctr.Labels[composeServiceLabel],
			State:       ctr.State,
		}
		for _, p := range ctr.Ports {
			if p.PublicPort == 0 {
				continue
			}
			port := nat.Port(fmt.Sprintf("%d/%s", p.PrivatePort, p.Type))
			svc.Ports = append(svc.Ports, fmt.Sprintf("%d->%s", p.PublicPort, port))
		}
		services = append(services, svc)
	}

	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

// FindService returns the running container for one compose service, or an
// error naming the service when none is running.
func (c *Client) FindService(ctx context.Context, project, service string) (string, error) {
	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("label", composeProjectLabel+"="+project),
			filters.Arg("label", composeServiceLabel+"="+service),
		),
	})
	if err != nil {
		return "", err
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("no running container for service %q in project %q", service, project)
	}
	return containers[0].ID, nil
}

// WaitReady polls until every container of the compose project is running
// (and healthy, when a healthcheck is defined) or the context expires. The
// timeout error reports the last observed state per service.
func (c *Client) WaitReady(ctx context.Context, project string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []Service
	for {
		services, err := c.ComposeServices(ctx, project)
		if err == nil && len(services) > 0 {
			last = services
			if allReady(services, func(id string) (string, error) { return c.containerHealth(ctx, id) }) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("project %q not ready: %s: %w", project, describeStates(last), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) containerHealth(ctx context.Context, id string) (string, error) {
	info, err := c.docker.ContainerInspect(ctx, id)
	if err != nil {
		return "", err
	}
	if info.State == nil || info.State.Health == nil {
		return "", nil
	}
	return info.State.Health.Status, nil
}

func allReady(services []Service, health func(id string) (string, error)) bool {
	for _, svc := range services {
		if svc.State != "running" {
			return false
		}
		status, err := health(svc.ContainerID)
		if err != nil {
			return false
		}
		if status != "" && status != "healthy" {
			return false
		}
	}
	return true
}

func describeStates(services []Service) string {
	if len(services) == 0 {
		return "no containers found"
	}
	parts := make([]string, 0, len(services))
	for _, svc := range services {
		parts = append(parts, svc.Name+"="+svc.State)
	}
	return strings.Join(parts, " ")
}

// StreamLogs follows the container log output and copies it to the given writer.
func (c *Client) StreamLogs(ctx context.Context, containerID string, w io.Writer) error {
	reader, err := c.docker.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return err
	}
	defer reader.Close()
	_, err = io.Copy(w, reader)
	return err
}
