package isolation

import (
	"context"
	"fmt"
	"io"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
)

type (
	// ContainerHandle identifies one running isolated container.
	ContainerHandle struct {
		ID     string
		c      testcontainers.Container
		Mounts []string
	}

	// Limits bounds a container's resources.
	Limits struct {
		CPUs      float64
		MemoryMiB int64
	}

	// ExecResult is the outcome of one ContainerRuntime.Exec call.
	ExecResult struct {
		ExitCode int
		Stdout   string
		Stderr   string
	}
)

// ContainerRuntime is the external ContainerRuntime collaborator from
// spec.md §6.
type ContainerRuntime interface {
	Create(ctx context.Context, image string, limits Limits, mounts []string) (ContainerHandle, error)
	Exec(ctx context.Context, h ContainerHandle, cmd []string, deadline time.Time) (ExecResult, error)
	Destroy(ctx context.Context, h ContainerHandle) error
}

// TestcontainersRuntime implements ContainerRuntime on top of
// testcontainers-go's GenericContainer, grounded on the teacher's pack-wide
// pattern of driving ephemeral containers programmatically (no repo in the
// pack ships a hand-rolled Docker client wrapper once testcontainers-go is
// available).
type TestcontainersRuntime struct {
	// LabelPrefix tags every container this runtime creates with the label
	// "<LabelPrefix>.orchestrator=true". Supervisor's cleanup sweep
	// (spec.md §4.11/§7) does not search by this label; it destroys the
	// container ids recorded on task records.
	LabelPrefix string
}

func (r *TestcontainersRuntime) Create(ctx context.Context, image string, limits Limits, mounts []string) (ContainerHandle, error) {
	binds := make([]string, 0, len(mounts))
	binds = append(binds, mounts...)

	req := testcontainers.ContainerRequest{
		Image: image,
		Cmd:   []string{"sleep", "infinity"},
		Labels: map[string]string{
			r.labelKey(): "true",
		},
		HostConfigModifier: func(hc *dockercontainer.HostConfig) {
			hc.Binds = binds
			if limits.MemoryMiB > 0 {
				hc.Resources.Memory = limits.MemoryMiB * 1024 * 1024
			}
			if limits.CPUs > 0 {
				hc.Resources.NanoCPUs = int64(limits.CPUs * 1e9)
			}
		},
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return ContainerHandle{}, fmt.Errorf("isolation: create container: %w", err)
	}
	id := c.GetContainerID()
	return ContainerHandle{ID: id, c: c, Mounts: mounts}, nil
}

func (r *TestcontainersRuntime) Exec(ctx context.Context, h ContainerHandle, cmd []string, deadline time.Time) (ExecResult, error) {
	if h.c == nil {
		return ExecResult{}, fmt.Errorf("isolation: exec: container handle %s has no live reference", h.ID)
	}
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	exitCode, reader, err := h.c.Exec(ctx, cmd)
	if err != nil {
		return ExecResult{}, fmt.Errorf("isolation: exec %v: %w", cmd, err)
	}
	var out []byte
	if reader != nil {
		out, _ = io.ReadAll(reader)
	}
	return ExecResult{ExitCode: exitCode, Stdout: string(out)}, nil
}

func (r *TestcontainersRuntime) Destroy(ctx context.Context, h ContainerHandle) error {
	if h.c == nil {
		if h.ID == "" {
			return nil
		}
		provider, err := testcontainers.NewDockerProvider()
		if err != nil {
			return fmt.Errorf("isolation: docker provider: %w", err)
		}
		defer provider.Close()
		if err := provider.Client().ContainerRemove(ctx, h.ID, dockercontainer.RemoveOptions{Force: true}); err != nil {
			return fmt.Errorf("isolation: remove container %s: %w", h.ID, err)
		}
		return nil
	}
	if err := h.c.Terminate(ctx); err != nil {
		return fmt.Errorf("isolation: terminate container %s: %w", h.ID, err)
	}
	return nil
}

func (r *TestcontainersRuntime) labelKey() string {
	if r.LabelPrefix == "" {
		return "codeforge.orchestrator"
	}
	return r.LabelPrefix + ".orchestrator"
}

// ProbeDocker reports whether a Docker daemon is reachable, by opening a
// testcontainers-go Docker provider and running its health check. Integration tests use this to
// skip themselves cleanly in environments with no Docker socket.
func ProbeDocker(ctx context.Context) (bool, error) {
	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false, fmt.Errorf("isolation: docker provider: %w", err)
	}
	defer provider.Close()
	if _, err := provider.Health(ctx); err != nil {
		return false, fmt.Errorf("isolation: docker health: %w", err)
	}
	return true, nil
}
