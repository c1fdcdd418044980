package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/moby/moby/api/pkg/stdcopy"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// Stats is the subset of the runtime's cumulative stats counters the
// Monitor's sampler needs. Two consecutive Stats for the same container
// yield a CPU% via delta math; memory% is computed from a single sample.
type Stats struct {
	Timestamp          time.Time
	CPUTotalUsage      uint64
	SystemCPUUsage     uint64
	OnlineCPUs         uint32
	MemoryUsage        uint64
	MemoryInactiveFile uint64
	MemoryLimit        uint64
}

// ListAllContainers returns all containers regardless of state.
func (c *Client) ListAllContainers(ctx context.Context) ([]container.Summary, error) {
	result, err := c.api.ContainerList(ctx, client.ContainerListOptions{All: true})
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

// InspectContainer returns full container details by ID.
func (c *Client) InspectContainer(ctx context.Context, id string) (container.InspectResponse, error) {
	result, err := c.api.ContainerInspect(ctx, id, client.ContainerInspectOptions{})
	if err != nil {
		return container.InspectResponse{}, err
	}
	return result.Container, nil
}

// ContainerStats takes a single non-streaming sample of a container's
// cumulative CPU/memory counters.
func (c *Client) ContainerStats(ctx context.Context, id string) (Stats, error) {
	resp, err := c.api.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return Stats{}, fmt.Errorf("container stats: %w", err)
	}
	defer resp.Body.Close()

	var raw container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Stats{}, fmt.Errorf("decode stats: %w", err)
	}

	online := raw.CPUStats.OnlineCPUs
	if online == 0 {
		online = uint32(len(raw.CPUStats.CPUUsage.PercpuUsage)) //nolint:gosec // bounded by host CPU count
	}

	return Stats{
		Timestamp:          time.Now(),
		CPUTotalUsage:      raw.CPUStats.CPUUsage.TotalUsage,
		SystemCPUUsage:     raw.CPUStats.SystemUsage,
		OnlineCPUs:         online,
		MemoryUsage:        raw.MemoryStats.Usage,
		MemoryInactiveFile: raw.MemoryStats.Stats["inactive_file"],
		MemoryLimit:        raw.MemoryStats.Limit,
	}, nil
}

// StopContainer stops a running container with the given timeout in seconds.
func (c *Client) StopContainer(ctx context.Context, id string, timeoutSeconds int) error {
	_, err := c.api.ContainerStop(ctx, id, client.ContainerStopOptions{Timeout: &timeoutSeconds})
	return err
}

// StartContainer starts a stopped container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	_, err := c.api.ContainerStart(ctx, id, client.ContainerStartOptions{})
	return err
}

// RestartContainer restarts a running container.
func (c *Client) RestartContainer(ctx context.Context, id string) error {
	_, err := c.api.ContainerRestart(ctx, id, client.ContainerRestartOptions{})
	return err
}

// RemoveContainerWithVolumes removes a container (force) and its anonymous
// volumes. Backs the cleanup action.
func (c *Client) RemoveContainerWithVolumes(ctx context.Context, id string) error {
	_, err := c.api.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true, RemoveVolumes: true})
	return err
}

// ExecContainer runs a command inside a container and returns its exit code
// and combined stdout/stderr output.
func (c *Client) ExecContainer(ctx context.Context, id string, cmd []string, timeoutSeconds int) (int, string, error) {
	if timeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}
	execCfg := client.ExecCreateOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}
	execResp, err := c.api.ExecCreate(ctx, id, execCfg)
	if err != nil {
		return -1, "", fmt.Errorf("exec create: %w", err)
	}

	attachResp, err := c.api.ExecAttach(ctx, execResp.ID, client.ExecAttachOptions{})
	if err != nil {
		return -1, "", fmt.Errorf("exec attach: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return -1, "", fmt.Errorf("exec read: %w", err)
	}
	if stderr.Len() > 0 {
		stdout.WriteString(stderr.String())
	}

	inspectResp, err := c.api.ExecInspect(ctx, execResp.ID, client.ExecInspectOptions{})
	if err != nil {
		return -1, stdout.String(), fmt.Errorf("exec inspect: %w", err)
	}

	return inspectResp.ExitCode, stdout.String(), nil
}
