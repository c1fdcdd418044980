// Package runtime adapts the container runtime (Docker) to the narrow
// vocabulary HemoStat's agents actually need: sampling and the bounded
// set of remediation actions (restart, scale_up, cleanup, exec).
package runtime

import (
	"context"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/swarm"
)

// API defines the subset of runtime operations used by Monitor and
// Responder. Implemented by Client for production, and by fakes in tests.
type API interface {
	ListAllContainers(ctx context.Context) ([]container.Summary, error)
	InspectContainer(ctx context.Context, id string) (container.InspectResponse, error)
	ContainerStats(ctx context.Context, id string) (Stats, error)
	StopContainer(ctx context.Context, id string, timeoutSeconds int) error
	StartContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainerWithVolumes(ctx context.Context, id string) error
	ExecContainer(ctx context.Context, id string, cmd []string, timeoutSeconds int) (exitCode int, output string, err error)

	// Swarm operations, only functional when the daemon is a swarm manager.
	// Back the scale_up action for services the monitored containers
	// belong to.
	IsSwarmManager(ctx context.Context) bool
	InspectService(ctx context.Context, id string) (swarm.Service, error)
	UpdateService(ctx context.Context, id string, version swarm.Version, spec swarm.ServiceSpec) error

	Close() error
}

// Verify Client implements API at compile time.
var _ API = (*Client)(nil)
