package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// newTestRedis spins up an in-memory miniredis server so these tests exercise
// real Redis command semantics (TTL, SETNX via the CAS script) without a
// live server — the same trick jordigilh-kubernaut's gateway tests use to
// validate dedup TTL behavior.
func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	r, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisSetGet(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	if err := r.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := r.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get = %q, want v1", got)
	}
}

func TestRedisGetMissing(t *testing.T) {
	r := newTestRedis(t)
	if _, err := r.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestRedisAppendBoundedTrims(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := r.AppendBounded(ctx, "events:all", []byte{byte('a' + i)}, 3, time.Hour); err != nil {
			t.Fatalf("AppendBounded: %v", err)
		}
	}
	list, err := r.ListBounded(ctx, "events:all")
	if err != nil {
		t.Fatalf("ListBounded: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	want := "cde"
	for i, entry := range list {
		if entry[0] != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, entry, want[i])
		}
	}
}

func TestRedisAtomicCheckAndSetDedup(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	// First notification for this dedup key claims the sentinel.
	ok, err := r.AtomicCheckAndSet(ctx, "dedupe:abc", nil, []byte("1"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}

	// A duplicate within the TTL window must be suppressed.
	ok, err = r.AtomicCheckAndSet(ctx, "dedupe:abc", nil, []byte("1"), time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("duplicate dedupe key should not re-claim")
	}
}

func TestRedisAtomicCheckAndSetExpectedMismatch(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, _ = r.AtomicCheckAndSet(ctx, "k", nil, []byte("v1"), time.Minute)
	ok, err := r.AtomicCheckAndSet(ctx, "k", []byte("wrong"), []byte("v2"), time.Minute)
	if err != nil {
		t.Fatalf("mismatch: %v", err)
	}
	if ok {
		t.Fatal("CAS with wrong expected should fail")
	}
}
