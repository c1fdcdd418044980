package runtime

import (
	"context"

	"github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/client"
)

// IsSwarmManager reports whether the daemon is an active Swarm manager.
// The scale_up action is only applicable to containers that belong to a
// Swarm service; for standalone containers the Responder reports
// not_applicable.
func (c *Client) IsSwarmManager(ctx context.Context) bool {
	result, err := c.api.Info(ctx, client.InfoOptions{})
	if err != nil {
		return false
	}
	return result.Info.Swarm.LocalNodeState == swarm.LocalNodeStateActive &&
		result.Info.Swarm.ControlAvailable
}

// InspectService returns a Swarm service's current spec and version, needed
// to compute and apply a replica-count update.
func (c *Client) InspectService(ctx context.Context, id string) (swarm.Service, error) {
	result, err := c.api.ServiceInspect(ctx, id, client.ServiceInspectOptions{})
	if err != nil {
		return swarm.Service{}, err
	}
	return result.Service, nil
}

// UpdateService applies spec (typically a bumped replica count) to a
// service. version must be the current version from InspectService; stale
// versions cause a conflict error.
func (c *Client) UpdateService(ctx context.Context, id string, version swarm.Version, spec swarm.ServiceSpec) error {
	_, err := c.api.ServiceUpdate(ctx, id, client.ServiceUpdateOptions{
		Version: version,
		Spec:    spec,
	})
	return err
}
