package broker

import (
	"context"
	"sync"
)

// inprocBufferSize is the per-channel backlog before Publish blocks. Modest
// since the in-process broker is for standalone mode and tests, not a
// production-scale fleet.
const inprocBufferSize = 256

type inprocMessage struct {
	ctx     context.Context
	payload []byte
}

type channelState struct {
	queue   chan inprocMessage
	handler Handler
	cancel  context.CancelFunc
}

// InProcess is a pub/sub broker backed entirely by Go channels, with one
// dispatcher goroutine per subscribed channel delivering messages strictly
// in publish order — the same ordering contract the MQTT broker gives in
// production (spec §5 "Ordering guarantees"). Used for standalone-mode
// deployments (no external broker configured) and for agent tests, the way
// the teacher's events.Bus backs its SSE fan-out without a real transport.
type InProcess struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	closed   bool
}

// NewInProcess creates a ready-to-use in-process broker.
func NewInProcess() *InProcess {
	return &InProcess{channels: make(map[string]*channelState)}
}

// Connect is a no-op for the in-process broker; there is nothing to dial.
func (b *InProcess) Connect(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Publish enqueues payload for channel's dispatcher. Blocks if the
// channel's backlog is full, applying backpressure rather than dropping —
// appropriate for a single-process deployment where there is no slow
// remote subscriber to isolate against.
func (b *InProcess) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	st, ok := b.channels[channel]
	b.mu.RUnlock()
	if !ok {
		// No subscriber yet: publishing to an unsubscribed channel is a
		// silent no-op, matching at-least-once semantics with no durable
		// backlog (spec §4.1 "fire-and-forget").
		return nil
	}

	select {
	case st.queue <- inprocMessage{ctx: ctx, payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe starts a dispatcher goroutine for channel if one doesn't
// already exist, then installs handler. Messages are delivered to handler
// strictly in arrival order; a handler error is swallowed by the
// dispatcher loop, matching spec §4.1's "logged and skipped" policy (the
// actual logging is the agent runtime's job, one layer up).
func (b *InProcess) Subscribe(ctx context.Context, channel string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	if st, ok := b.channels[channel]; ok {
		st.handler = handler
		return nil
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	st := &channelState{
		queue:   make(chan inprocMessage, inprocBufferSize),
		handler: handler,
		cancel:  cancel,
	}
	b.channels[channel] = st

	go func() {
		for {
			select {
			case msg := <-st.queue:
				b.mu.RLock()
				h := st.handler
				b.mu.RUnlock()
				_ = h(msg.ctx, msg.payload)
			case <-dispatchCtx.Done():
				return
			}
		}
	}()
	return nil
}

// Close stops every dispatcher goroutine and releases resources.
func (b *InProcess) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, st := range b.channels {
		st.cancel()
	}
	return nil
}

var _ Broker = (*InProcess)(nil)
