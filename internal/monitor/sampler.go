// Package monitor implements the Monitor agent: periodic sampling of every
// container, anomaly detection against configured thresholds, and
// publication of health_alert messages (spec §3.2, §4.2).
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/moby/moby/api/types/container"

	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/runtime"
)

// sample builds an envelope.Sample for one container from its current
// inspect state and a single Stats snapshot. CPU% requires two consecutive
// snapshots (see cpuPercent below), so a fresh sample's Metrics.HasCPUPercent is
// false until a previous snapshot exists for the container.
func sample(ctx context.Context, api runtime.API, summary container.Summary) (envelope.Sample, runtime.Stats, error) {
	stats, err := api.ContainerStats(ctx, summary.ID)
	if err != nil {
		return envelope.Sample{}, runtime.Stats{}, fmt.Errorf("monitor: stats %s: %w", summary.ID, err)
	}

	inspect, err := api.InspectContainer(ctx, summary.ID)
	if err != nil {
		return envelope.Sample{}, runtime.Stats{}, fmt.Errorf("monitor: inspect %s: %w", summary.ID, err)
	}

	name := summary.ID
	if len(summary.Names) > 0 {
		name = summary.Names[0]
	}

	s := envelope.Sample{
		Container: envelope.ContainerRef{
			ID:    summary.ID,
			Name:  name,
			Image: summary.Image,
		},
		Status:       dockerStatus(inspect),
		HealthStatus: dockerHealth(inspect),
		SampledAt:    time.Now(),
		Metrics: envelope.Metrics{
			MemoryBytes: stats.MemoryUsage,
			MemoryLimit: stats.MemoryLimit,
		},
	}
	if inspect.State != nil {
		s.ExitCode = inspect.State.ExitCode
	}
	s.RestartCount = inspect.RestartCount

	if stats.MemoryLimit > 0 {
		used := stats.MemoryUsage
		if stats.MemoryInactiveFile < used {
			used -= stats.MemoryInactiveFile
		}
		s.Metrics.MemoryPercent = float64(used) / float64(stats.MemoryLimit) * 100
	}

	return s, stats, nil
}

func dockerStatus(inspect container.InspectResponse) envelope.Status {
	if inspect.State == nil {
		return envelope.StatusUnknown
	}
	switch {
	case inspect.State.Running && !inspect.State.Paused && !inspect.State.Restarting:
		return envelope.StatusRunning
	case inspect.State.Restarting:
		return envelope.StatusRestarting
	case inspect.State.Paused:
		return envelope.StatusPaused
	case inspect.State.Dead:
		return envelope.StatusDead
	case inspect.State.Status == "exited":
		return envelope.StatusExited
	default:
		return envelope.StatusUnknown
	}
}

func dockerHealth(inspect container.InspectResponse) envelope.HealthStatus {
	if inspect.State == nil || inspect.State.Health == nil {
		return envelope.HealthNone
	}
	switch inspect.State.Health.Status {
	case "healthy":
		return envelope.HealthHealthy
	case "unhealthy":
		return envelope.HealthUnhealthy
	case "starting":
		return envelope.HealthStarting
	default:
		return envelope.HealthNone
	}
}

// cpuPercent computes cpu% from two consecutive cumulative Stats samples of
// the same container, per spec §3.2: (delta cpu_total / delta system_cpu) *
// online_cpus * 100. Returns ok=false when the system delta is zero (first
// sample, or the daemon reported no change).
func cpuPercent(prev, cur runtime.Stats) (pct float64, ok bool) {
	deltaCPU := float64(cur.CPUTotalUsage) - float64(prev.CPUTotalUsage)
	deltaSystem := float64(cur.SystemCPUUsage) - float64(prev.SystemCPUUsage)
	if deltaSystem <= 0 || deltaCPU < 0 {
		return 0, false
	}
	online := cur.OnlineCPUs
	if online == 0 {
		online = 1
	}
	return (deltaCPU / deltaSystem) * float64(online) * 100, true
}
