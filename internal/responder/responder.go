package responder

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/metrics"
	"github.com/jondmarien/hemostat/internal/runtime"
)

// Responder subscribes to remediation_needed, applies the ordered safety
// checks of spec §4.4, executes the action, and publishes exactly one
// remediation_complete Outcome. Different containers' requests may run
// concurrently up to max_parallel_actions; a single container is never
// processed by more than one in-flight request at a time (enforced by the
// single-writer lock, not by this goroutine pool).
type Responder struct {
	rt  *agentrt.Runtime
	api runtime.API
	cfg *config.Config
	sem *semaphore.Weighted

	wg sync.WaitGroup
}

// New wires a Responder.
func New(rt *agentrt.Runtime, api runtime.API, cfg *config.Config) *Responder {
	return &Responder{
		rt:  rt,
		api: api,
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.MaxParallelActions())),
	}
}

// Run subscribes to remediation_needed until ctx is cancelled, then drains
// in-flight handlers up to drain_deadline before returning.
func (r *Responder) Run(ctx context.Context) error {
	err := r.rt.Subscribe(ctx, envelope.KindRemediationNeeded, func(ctx context.Context, env envelope.Envelope) error {
		var data envelope.RemediationNeededData
		if err := env.Unmarshal(&data); err != nil {
			return err
		}
		return r.dispatch(ctx, env.Timestamp, data)
	})
	if err != nil {
		return err
	}

	r.rt.SetState(agentrt.StateRunning)
	<-ctx.Done()
	r.rt.SetState(agentrt.StateDraining)
	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(r.cfg.DrainDeadline()):
		r.rt.Log.Warn("drain deadline exceeded, in-flight actions abandoned")
	}
	return ctx.Err()
}

// dispatch acquires a worker-pool slot and processes the request. Acquiring
// blocks (respecting ctx) when max_parallel_actions in-flight actions are
// already running — this is the worker-pool bound, separate from the
// per-container single-writer lock.
func (r *Responder) dispatch(ctx context.Context, originatingTimestamp time.Time, req envelope.RemediationNeededData) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.sem.Release(1)
		defer r.wg.Done()
		r.process(context.Background(), originatingTimestamp, req)
	}()
	return nil
}

// process runs the full safety-check chain and publishes exactly one
// Outcome (spec §4.4 steps 1-9).
func (r *Responder) process(ctx context.Context, originatingTimestamp time.Time, req envelope.RemediationNeededData) {
	start := time.Now()
	containerID := req.Container.ID

	outcome := envelope.RemediationCompleteData{
		Container:            req.Container,
		Action:                req.Action,
		DryRun:                req.DryRun,
		Reason:                req.Reason,
		Confidence:            req.Confidence,
		Attempt:               1,
		OriginatingTimestamp:  originatingTimestamp,
	}

	result, rejection, execErr := r.evaluate(ctx, req)
	outcome.Result = result
	outcome.RejectionReason = rejection
	if execErr != nil {
		outcome.Error = execErr.Error()
	}
	outcome.DurationMS = time.Since(start).Milliseconds()

	metrics.RemediationsTotal.WithLabelValues(string(req.Action), string(result)).Inc()
	if rejection != envelope.RejectNone {
		metrics.RejectionsTotal.WithLabelValues(string(rejection)).Inc()
	}
	metrics.ActionDuration.Observe(time.Since(start).Seconds())

	r.appendAudit(ctx, containerID, auditEntry{
		Timestamp: time.Now(),
		Action:    req.Action,
		Result:    result,
		Reason:    rejection,
		DryRun:    req.DryRun,
		Error:     outcome.Error,
	})

	if err := r.rt.Publish(ctx, envelope.KindRemediationComplete, outcome); err != nil {
		r.rt.Log.Error("publish remediation_complete failed", "container", containerID, "error", err)
	}
}

// evaluate runs the ordered safety checks (spec §4.4 steps 1-7) and, if all
// pass, executes the action.
func (r *Responder) evaluate(ctx context.Context, req envelope.RemediationNeededData) (envelope.Result, envelope.RejectionReason, error) {
	containerID := req.Container.ID

	if !isKnownAction(req.Action) {
		return envelope.ResultRejected, envelope.RejectUnsupportedAction, nil
	}

	// 1. Container existence.
	if _, err := r.api.InspectContainer(ctx, containerID); err != nil {
		return envelope.ResultRejected, envelope.RejectUnknownContainer, nil
	}

	// 2. Dry-run.
	if req.DryRun {
		return envelope.ResultRejected, envelope.RejectDryRunSkipped, nil
	}

	// 3. Cooldown.
	allowed, err := r.checkCooldown(ctx, containerID)
	if err != nil {
		return envelope.ResultFailed, envelope.RejectNone, err
	}
	if !allowed {
		return envelope.ResultRejected, envelope.RejectCooldownActive, nil
	}

	// 4. Circuit breaker.
	open, ring, err := r.checkCircuit(ctx, containerID)
	if err != nil {
		return envelope.ResultFailed, envelope.RejectNone, err
	}
	if open {
		metrics.CircuitOpenTotal.Add(1)
		return envelope.ResultRejected, envelope.RejectCircuitOpen, nil
	}

	// 5. Single-writer guard.
	acquired, err := r.acquireLock(ctx, containerID)
	if err != nil {
		return envelope.ResultFailed, envelope.RejectNone, err
	}
	if !acquired {
		return envelope.ResultRejected, envelope.RejectCooldownActive, nil
	}
	defer r.releaseLock(ctx, containerID)

	// 6. Execute, bounded by the action deadline.
	actionCtx, cancel := context.WithTimeout(ctx, r.cfg.ActionDeadline())
	defer cancel()
	execErr := r.execute(actionCtx, req.Action, containerID)

	// 7. Bookkeeping: success updates cooldown; both success and failure
	// count against the circuit (anti-loop property). not_applicable
	// actions never happened, so neither applies.
	switch {
	case execErr == nil:
		if err := r.recordCooldown(ctx, containerID, req.Action); err != nil {
			r.rt.Log.Error("record cooldown failed", "container", containerID, "error", err)
		}
		if err := r.recordCircuitAttempt(ctx, containerID, ring); err != nil {
			r.rt.Log.Error("record circuit attempt failed", "container", containerID, "error", err)
		}
		return envelope.ResultSuccess, envelope.RejectNone, nil
	case errors.Is(execErr, errNotApplicable):
		return envelope.ResultNotApplicable, envelope.RejectNone, nil
	default:
		if err := r.recordCircuitAttempt(ctx, containerID, ring); err != nil {
			r.rt.Log.Error("record circuit attempt failed", "container", containerID, "error", err)
		}
		return envelope.ResultFailed, envelope.RejectNone, execErr
	}
}
