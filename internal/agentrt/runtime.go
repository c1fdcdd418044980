// Package agentrt is the shared runtime every HemoStat agent embeds: broker
// connection lifecycle with backoff, envelope publish/subscribe helpers, and
// keyed-store access scoped to one agent's view of it (spec §4.1 "Shared
// Agent Runtime"). Monitor, Analyzer, Responder, and Alert each wrap a
// *Runtime rather than talking to broker.Broker/kvstore.Store directly.
package agentrt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jondmarien/hemostat/internal/broker"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/kvstore"
	"github.com/jondmarien/hemostat/internal/logging"
)

// State is an agent's coarse lifecycle phase, readable without locking so a
// liveness/readiness check can poll it cheaply (spec's per-agent readiness
// supplement — process-local only, no network exporter).
type State string

const (
	StateStarting  State = "starting"
	StateConnected State = "connected"
	StateRunning   State = "running"
	StateDraining  State = "draining"
	StateStopped   State = "stopped"
)

// backoffSchedule is the reconnect backoff per spec §3.3: 1s, 2s, 4s, ...
// capped at 30s, up to maxConnectAttempts tries before giving up.
var backoffSchedule = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	16 * time.Second, 30 * time.Second,
}

const maxConnectAttempts = 10

// Runtime bundles the broker and store connections and the logger one
// agent needs, plus the envelope marshal/unmarshal boilerplate every
// publish and subscribe call repeats.
type Runtime struct {
	Name   string
	Broker broker.Broker
	Store  kvstore.Store
	Log    *logging.Logger

	state atomic.Value // State
}

// New wires a Runtime for the named agent.
func New(name string, b broker.Broker, s kvstore.Store, log *logging.Logger) *Runtime {
	r := &Runtime{Name: name, Broker: b, Store: s, Log: log.Agent(name)}
	r.SetState(StateStarting)
	return r
}

// SetState records the agent's current lifecycle phase.
func (r *Runtime) SetState(s State) { r.state.Store(s) }

// State returns the agent's current lifecycle phase.
func (r *Runtime) State() State {
	if v, ok := r.state.Load().(State); ok {
		return v
	}
	return StateStarting
}

// Connect establishes the broker connection, retrying with the backoff
// schedule above. Returns an error only after exhausting all attempts.
func (r *Runtime) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if err := r.Broker.Connect(ctx); err == nil {
			r.SetState(StateConnected)
			return nil
		} else {
			lastErr = err
		}
		r.Log.Warn("broker connect failed", "attempt", attempt+1, "error", lastErr)

		idx := attempt
		if idx >= len(backoffSchedule) {
			idx = len(backoffSchedule) - 1
		}
		wait := backoffSchedule[idx]
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("agentrt: %s: connect failed after %d attempts: %w", r.Name, maxConnectAttempts, lastErr)
}

// Publish wraps data in an Envelope and publishes it to kind's topic.
func (r *Runtime) Publish(ctx context.Context, kind string, data any) error {
	env, err := envelope.Wrap(r.Name, kind, data)
	if err != nil {
		return err
	}
	raw, err := envelope.Encode(env)
	if err != nil {
		return fmt.Errorf("agentrt: encode %s: %w", kind, err)
	}
	return r.Broker.Publish(ctx, envelope.Topic(kind), raw)
}

// EnvelopeHandler processes one decoded Envelope.
type EnvelopeHandler func(ctx context.Context, env envelope.Envelope) error

// Subscribe registers handler for kind's topic, decoding the raw payload
// into an Envelope before calling handler. Per spec §4.1, delivery for a
// single channel is strictly serial and in order; the broker
// implementations guarantee this, so Subscribe does not add its own
// dispatch queue on top.
func (r *Runtime) Subscribe(ctx context.Context, kind string, handler EnvelopeHandler) error {
	return r.Broker.Subscribe(ctx, envelope.Topic(kind), func(ctx context.Context, payload []byte) error {
		env, err := envelope.Decode(payload)
		if err != nil {
			r.Log.Error("malformed envelope", "kind", kind, "error", err)
			return err
		}
		if err := handler(ctx, env); err != nil {
			r.Log.Error("handler failed", "kind", kind, "error", err)
			return err
		}
		return nil
	})
}

// Close tears down the broker and store connections.
func (r *Runtime) Close() error {
	r.SetState(StateStopped)
	berr := r.Broker.Close()
	serr := r.Store.Close()
	if berr != nil {
		return berr
	}
	return serr
}
