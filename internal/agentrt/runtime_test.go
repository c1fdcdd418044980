package agentrt

import (
	"context"
	"testing"
	"time"

	"github.com/jondmarien/hemostat/internal/broker"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/kvstore"
	"github.com/jondmarien/hemostat/internal/logging"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	b := broker.NewInProcess()
	store, err := kvstore.OpenBolt(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New("test-agent", b, store, logging.New(false))
}

func TestRuntimeConnectSetsConnectedState(t *testing.T) {
	rt := newTestRuntime(t)
	if rt.State() != StateStarting {
		t.Fatalf("initial state = %s, want starting", rt.State())
	}
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if rt.State() != StateConnected {
		t.Fatalf("state after Connect = %s, want connected", rt.State())
	}
}

func TestRuntimePublishSubscribeRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	type payload struct {
		Value string `json:"value"`
	}

	received := make(chan payload, 1)
	err := rt.Subscribe(context.Background(), "widget_created", func(_ context.Context, env envelope.Envelope) error {
		var p payload
		if err := env.Unmarshal(&p); err != nil {
			return err
		}
		received <- p
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := rt.Publish(context.Background(), "widget_created", payload{Value: "hi"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.Value != "hi" {
			t.Errorf("got %+v, want Value=hi", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscribed message")
	}
}

func TestRuntimeStateJSONHelpers(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	type record struct {
		Count int `json:"count"`
	}

	if err := rt.GetJSON(ctx, "missing", &record{}); err != ErrNotFound {
		t.Fatalf("GetJSON on missing key = %v, want ErrNotFound", err)
	}

	if err := rt.SetJSON(ctx, "k", record{Count: 3}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	var got record
	if err := rt.GetJSON(ctx, "k", &got); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
}

func TestRuntimeTryClaimIsFirstWriterWins(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	claimed, err := rt.TryClaim(ctx, "lock:c1", []byte("a"), time.Minute)
	if err != nil {
		t.Fatalf("TryClaim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = rt.TryClaim(ctx, "lock:c1", []byte("b"), time.Minute)
	if err != nil {
		t.Fatalf("TryClaim: %v", err)
	}
	if claimed {
		t.Fatal("second claim on an already-held key should fail")
	}
}
