package responder

import (
	"context"
	"errors"
	"fmt"

	"github.com/moby/moby/api/types/swarm"

	"github.com/jondmarien/hemostat/internal/envelope"
)

func isKnownAction(a envelope.Action) bool {
	switch a {
	case envelope.ActionRestart, envelope.ActionScaleUp, envelope.ActionCleanup, envelope.ActionExec:
		return true
	default:
		return false
	}
}

// errNotApplicable signals an action that is well-formed but cannot apply
// to this container (e.g. scale_up on a non-swarm container), distinct
// from an execution failure.
var errNotApplicable = errors.New("responder: action not applicable to this container")

// restartTimeoutSeconds is the timeout passed to the exec remedy command
// (see exec below). RestartContainer takes no timeout, so a restart's stop
// phase uses the daemon's default.
const restartTimeoutSeconds = 10

// execute runs action against containerID and returns nil on success, or
// the error that determines whether the Outcome is failed / not_applicable.
func (r *Responder) execute(ctx context.Context, action envelope.Action, containerID string) error {
	switch action {
	case envelope.ActionRestart:
		return r.api.RestartContainer(ctx, containerID)
	case envelope.ActionScaleUp:
		return r.scaleUp(ctx, containerID)
	case envelope.ActionCleanup:
		return r.cleanup(ctx, containerID)
	case envelope.ActionExec:
		return r.exec(ctx, containerID)
	default:
		return fmt.Errorf("responder: unsupported action %q", action)
	}
}

// scaleUp looks up the Swarm service containerID belongs to (via its
// com.docker.swarm.service.id label) and bumps its replica count by one.
// Returns errNotApplicable when the daemon isn't a swarm manager or the
// container carries no service label.
func (r *Responder) scaleUp(ctx context.Context, containerID string) error {
	if !r.api.IsSwarmManager(ctx) {
		return errNotApplicable
	}
	inspect, err := r.api.InspectContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("inspect for scale_up: %w", err)
	}
	serviceID := inspect.Config.Labels["com.docker.swarm.service.id"]
	if serviceID == "" {
		return errNotApplicable
	}

	svc, err := r.api.InspectService(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("inspect service: %w", err)
	}
	if svc.Spec.Mode.Replicated == nil {
		return errNotApplicable
	}

	replicas := svc.Spec.Mode.Replicated.Replicas
	newReplicas := uint64(1)
	if replicas != nil {
		newReplicas = *replicas + 1
	}
	spec := svc.Spec
	spec.Mode.Replicated = &swarm.ReplicatedService{Replicas: &newReplicas}

	return r.api.UpdateService(ctx, serviceID, svc.Version, spec)
}

// cleanup removes the container and its anonymous volumes. Applicable only
// to containers already stopped (exited/dead); a running container yields
// errNotApplicable rather than force-removing live state.
func (r *Responder) cleanup(ctx context.Context, containerID string) error {
	inspect, err := r.api.InspectContainer(ctx, containerID)
	if err != nil {
		return fmt.Errorf("inspect for cleanup: %w", err)
	}
	if inspect.State != nil && inspect.State.Running {
		return errNotApplicable
	}
	return r.api.RemoveContainerWithVolumes(ctx, containerID)
}

// execRemedy is the single well-known remedy command run inside a
// container for the exec action (spec §4.4 "run a short well-known remedy
// command"). Kept as a fixed command rather than operator-supplied input,
// since arbitrary exec would defeat the confidence-gated actuation model.
var execRemedy = []string{"sh", "-c", "kill -HUP 1"}

func (r *Responder) exec(ctx context.Context, containerID string) error {
	code, output, err := r.api.ExecContainer(ctx, containerID, execRemedy, restartTimeoutSeconds)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("exec: remedy command exited %d: %s", code, output)
	}
	return nil
}
