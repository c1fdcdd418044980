// Package kvstore implements the keyed-state helpers shared by every
// HemoStat agent (spec §4.1 "State helpers", §6.3 keyed-store layout).
// All keys passed to a Store are bare (callers add any "hemostat:" or
// per-agent prefix); TTLs are always explicit.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kvstore: not found")

// Store is the generic keyed store every agent runtime is built on. Two
// implementations are provided: Redis (production, native TTL and a
// server-side atomic check-and-set script) and Bolt (embedded, standalone-mode fallback with a janitor
// sweep for TTL emulation).
type Store interface {
	// Get returns the raw bytes stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// AppendBounded appends entry to the list at key, trims the list to
	// the most recent maxLen entries, and refreshes the key's TTL. Used
	// for audit trails and UI event lists (spec invariant 6).
	AppendBounded(ctx context.Context, key string, entry []byte, maxLen int, ttl time.Duration) error

	// ListBounded returns the bounded list at key, newest-last (the order
	// AppendBounded appends in).
	ListBounded(ctx context.Context, key string) ([][]byte, error)

	// AtomicCheckAndSet atomically stores newValue at key with the given
	// ttl only if the key is currently absent (expected == nil) or holds
	// exactly expected. Returns true if the set happened. Used for the
	// Responder's single-writer lock and the Alert agent's dedup
	// sentinel (spec §4.1, §4.4 step 5, §4.5 "Deduplication").
	AtomicCheckAndSet(ctx context.Context, key string, expected, newValue []byte, ttl time.Duration) (bool, error)

	// Close releases the underlying connection/handle.
	Close() error
}
