package kvstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestBolt(t *testing.T) *Bolt {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	b, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltSetGet(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	if err := b.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := b.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get = %q, want v1", got)
	}
}

func TestBoltGetMissing(t *testing.T) {
	b := openTestBolt(t)
	if _, err := b.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}
}

func TestBoltSetExpiry(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	if err := b.Set(ctx, "k1", []byte("v1"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := b.Get(ctx, "k1"); err != ErrNotFound {
		t.Fatalf("Get past-expiry = %v, want ErrNotFound", err)
	}
}

func TestBoltAppendBoundedTrims(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.AppendBounded(ctx, "events", []byte{byte('a' + i)}, 3, time.Hour); err != nil {
			t.Fatalf("AppendBounded: %v", err)
		}
	}
	list, err := b.ListBounded(ctx, "events")
	if err != nil {
		t.Fatalf("ListBounded: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len(list) = %d, want 3", len(list))
	}
	want := []byte{'c', 'd', 'e'}
	for i, entry := range list {
		if entry[0] != want[i] {
			t.Errorf("list[%d] = %q, want %q", i, entry, []byte{want[i]})
		}
	}
}

func TestBoltAtomicCheckAndSetAbsent(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	ok, err := b.AtomicCheckAndSet(ctx, "lock:c1", nil, []byte("token-a"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}

	ok, err = b.AtomicCheckAndSet(ctx, "lock:c1", nil, []byte("token-b"), time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("second claim on held lock should fail")
	}
}

func TestBoltAtomicCheckAndSetExpected(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	if _, err := b.AtomicCheckAndSet(ctx, "k", nil, []byte("v1"), time.Minute); err != nil {
		t.Fatalf("initial set: %v", err)
	}

	ok, err := b.AtomicCheckAndSet(ctx, "k", []byte("wrong"), []byte("v2"), time.Minute)
	if err != nil {
		t.Fatalf("wrong expected: %v", err)
	}
	if ok {
		t.Fatal("CAS with wrong expected should fail")
	}

	ok, err = b.AtomicCheckAndSet(ctx, "k", []byte("v1"), []byte("v2"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("correct expected: ok=%v err=%v", ok, err)
	}
	got, _ := b.Get(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("Get after CAS = %q, want v2", got)
	}
}

func TestBoltDelete(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()
	_ = b.Set(ctx, "k", []byte("v"), 0)
	if err := b.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "k"); err != ErrNotFound {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}
