package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jondmarien/hemostat/internal/kvstore"
)

// GetJSON reads key and unmarshals it into dst. Returns kvstore.ErrNotFound
// unchanged so callers can treat "no record yet" as a normal branch.
func (r *Runtime) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := r.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("agentrt: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON marshals value and stores it at key with ttl.
func (r *Runtime) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("agentrt: encode %s: %w", key, err)
	}
	return r.Store.Set(ctx, key, raw, ttl)
}

// AppendBoundedJSON marshals entry and appends it to the bounded list at key.
func (r *Runtime) AppendBoundedJSON(ctx context.Context, key string, entry any, maxLen int, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("agentrt: encode %s: %w", key, err)
	}
	return r.Store.AppendBounded(ctx, key, raw, maxLen, ttl)
}

// TryClaim atomically claims key (expected-absent CAS) with value token and
// ttl. Used for the Responder's single-writer lock and the Alert agent's
// dedup sentinel: both are "first writer wins" claims, never "read then
// decide" races.
func (r *Runtime) TryClaim(ctx context.Context, key string, token []byte, ttl time.Duration) (bool, error) {
	return r.Store.AtomicCheckAndSet(ctx, key, nil, token, ttl)
}

// ErrNotFound re-exports kvstore.ErrNotFound for callers that only import
// agentrt.
var ErrNotFound = kvstore.ErrNotFound
