package broker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestInProcessPublishSubscribe(t *testing.T) {
	b := NewInProcess()
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer b.Close()

	received := make(chan []byte, 1)
	err := b.Subscribe(context.Background(), "ch", func(_ context.Context, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := b.Publish(context.Background(), "ch", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "hello" {
			t.Errorf("payload = %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestInProcessDeliveryOrder(t *testing.T) {
	b := NewInProcess()
	_ = b.Connect(context.Background())
	defer b.Close()

	var mu sync.Mutex
	var order []int

	done := make(chan struct{})
	_ = b.Subscribe(context.Background(), "ch", func(_ context.Context, payload []byte) error {
		mu.Lock()
		order = append(order, int(payload[0]))
		n := len(order)
		mu.Unlock()
		if n == 10 {
			close(done)
		}
		return nil
	})

	for i := 0; i < 10; i++ {
		_ = b.Publish(context.Background(), "ch", []byte{byte(i)})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order = %v, want strictly ascending", order)
		}
	}
}

func TestInProcessPublishWithNoSubscriberIsNoop(t *testing.T) {
	b := NewInProcess()
	_ = b.Connect(context.Background())
	defer b.Close()

	if err := b.Publish(context.Background(), "nobody-listening", []byte("x")); err != nil {
		t.Fatalf("Publish to unsubscribed channel should be a no-op, got: %v", err)
	}
}

func TestInProcessClosedRejectsOperations(t *testing.T) {
	b := NewInProcess()
	_ = b.Connect(context.Background())
	_ = b.Close()

	if err := b.Connect(context.Background()); err != ErrClosed {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
	if err := b.Publish(context.Background(), "ch", []byte("x")); err != ErrClosed {
		t.Errorf("Publish after Close = %v, want ErrClosed", err)
	}
	if err := b.Subscribe(context.Background(), "ch", func(context.Context, []byte) error { return nil }); err != ErrClosed {
		t.Errorf("Subscribe after Close = %v, want ErrClosed", err)
	}
}
