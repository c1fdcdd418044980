// Package responder implements the Responder agent: safety-gated
// remediation execution against the container runtime (spec §4.4).
package responder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/envelope"
)

// cooldownRecord is the persisted state for a container's last successful
// actuation (spec §3.1 CooldownRecord).
type cooldownRecord struct {
	LastActionTimestamp time.Time      `json:"last_action_timestamp"`
	LastActionKind      envelope.Action `json:"last_action_kind"`
}

func cooldownKey(containerID string) string { return "cooldown:" + containerID }
func circuitKey(containerID string) string  { return "circuit:" + containerID }
func lockKey(containerID string) string     { return "lock:" + containerID }
func auditKey(containerID string) string    { return "audit:" + containerID }

// checkCooldown returns true if a new action is allowed (no record, or the
// elapsed time since the last action meets or exceeds cooldown_seconds).
func (r *Responder) checkCooldown(ctx context.Context, containerID string) (bool, error) {
	var rec cooldownRecord
	err := r.rt.GetJSON(ctx, cooldownKey(containerID), &rec)
	if err == agentrt.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return time.Since(rec.LastActionTimestamp) >= r.cfg.Cooldown(), nil
}

// recordCooldown is called only after a successful actuation (spec §4.4
// step 7); a failed attempt must not reset the cooldown clock.
func (r *Responder) recordCooldown(ctx context.Context, containerID string, action envelope.Action) error {
	ttl := r.cfg.Cooldown()
	if r.cfg.CircuitWindow() > ttl {
		ttl = r.cfg.CircuitWindow()
	}
	return r.rt.SetJSON(ctx, cooldownKey(containerID), cooldownRecord{
		LastActionTimestamp: time.Now(),
		LastActionKind:      action,
	}, ttl)
}

// checkCircuit trims the per-container ring to the trailing window and
// reports whether the ring is already at capacity.
func (r *Responder) checkCircuit(ctx context.Context, containerID string) (open bool, ring []time.Time, err error) {
	ring, err = r.loadRing(ctx, containerID)
	if err != nil {
		return false, nil, err
	}
	ring = trimRing(ring, r.cfg.CircuitWindow())
	return len(ring) >= r.cfg.MaxRetriesPerWindow(), ring, nil
}

// recordCircuitAttempt appends now to the ring regardless of outcome: a
// failed attempt still counts against the circuit breaker, the anti-loop
// property from spec §4.4 step 7.
func (r *Responder) recordCircuitAttempt(ctx context.Context, containerID string, ring []time.Time) error {
	ring = append(ring, time.Now())
	ring = trimRing(ring, r.cfg.CircuitWindow())
	return r.rt.SetJSON(ctx, circuitKey(containerID), ring, r.cfg.CircuitWindow())
}

func (r *Responder) loadRing(ctx context.Context, containerID string) ([]time.Time, error) {
	var ring []time.Time
	err := r.rt.GetJSON(ctx, circuitKey(containerID), &ring)
	if err == agentrt.ErrNotFound {
		return nil, nil
	}
	return ring, err
}

func trimRing(ring []time.Time, window time.Duration) []time.Time {
	cutoff := time.Now().Add(-window)
	kept := ring[:0]
	for _, t := range ring {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// acquireLock claims the single-writer guard for containerID. Its TTL is
// the action deadline: if the process dies mid-action, the lock expires on
// its own rather than wedging the container forever.
func (r *Responder) acquireLock(ctx context.Context, containerID string) (bool, error) {
	token := []byte(uuid.NewString())
	return r.rt.TryClaim(ctx, lockKey(containerID), token, r.cfg.ActionDeadline())
}

func (r *Responder) releaseLock(ctx context.Context, containerID string) {
	_ = r.rt.Store.Delete(ctx, lockKey(containerID))
}

// auditEntry is one line of the per-container audit trail (spec §4.4 step 8).
type auditEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Action    envelope.Action        `json:"action"`
	Result    envelope.Result        `json:"result"`
	Reason    envelope.RejectionReason `json:"rejection_reason,omitempty"`
	DryRun    bool                   `json:"dry_run"`
	Error     string                 `json:"error,omitempty"`
}

func (r *Responder) appendAudit(ctx context.Context, containerID string, e auditEntry) {
	if err := r.rt.AppendBoundedJSON(ctx, auditKey(containerID), e, 100, 24*time.Hour); err != nil {
		r.rt.Log.Error("audit append failed", "container", containerID, "error", err)
	}
}
