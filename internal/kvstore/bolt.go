package kvstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketValues = []byte("values")
	bucketLists  = []byte("lists")
	bucketExpiry = []byte("expiry")
)

// entryRecord is the on-disk envelope for a scalar value, carrying its
// absolute expiry so a restart can tell stale data from live data before
// the janitor gets to it.
type entryRecord struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Bolt is the embedded Store implementation used in standalone mode (no
// Redis configured). BoltDB has no native TTL, so expiry is emulated: every
// write records its absolute deadline alongside the value (the way the
// teacher's store.Store records RFC3339Nano timestamps in its own bucket
// keys), and a background janitor goroutine sweeps expired keys. Reads
// also check the deadline so a late janitor tick never serves stale data.
type Bolt struct {
	db *bolt.DB

	janitorStop chan struct{}
	janitorDone chan struct{}

	closeMu sync.Mutex
	closed  bool
}

// OpenBolt opens (creating if needed) a BoltDB-backed Store at path and
// starts its TTL janitor.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("kvstore: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketValues, bucketLists, bucketExpiry} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: create buckets: %w", err)
	}

	b := &Bolt{
		db:          db,
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go b.runJanitor()
	return b, nil
}

func (b *Bolt) runJanitor() {
	defer close(b.janitorDone)
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sweep()
		case <-b.janitorStop:
			return
		}
	}
}

// sweep deletes any value/list bucket keys whose recorded expiry bucket
// entry is in the past.
func (b *Bolt) sweep() {
	now := time.Now()
	_ = b.db.Update(func(tx *bolt.Tx) error {
		exp := tx.Bucket(bucketExpiry)
		vals := tx.Bucket(bucketValues)
		lists := tx.Bucket(bucketLists)

		var stale [][]byte
		c := exp.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			deadline := decodeTime(v)
			if !deadline.IsZero() && now.After(deadline) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			_ = vals.Delete(k)
			_ = lists.Delete(k)
			_ = exp.Delete(k)
		}
		return nil
	})
}

func encodeTime(t time.Time) []byte {
	if t.IsZero() {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func decodeTime(buf []byte) time.Time {
	if len(buf) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(buf)))
}

func (b *Bolt) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		var rec entryRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}
		if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
			return ErrNotFound
		}
		out = rec.Value
		return nil
	})
	return out, err
}

func (b *Bolt) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := entryRecord{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("kvstore: encode entry: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketValues).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket(bucketExpiry).Put([]byte(key), encodeTime(rec.ExpiresAt))
	})
}

func (b *Bolt) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		_ = tx.Bucket(bucketValues).Delete([]byte(key))
		_ = tx.Bucket(bucketLists).Delete([]byte(key))
		_ = tx.Bucket(bucketExpiry).Delete([]byte(key))
		return nil
	})
}

// boltList is the JSON representation of a bounded list stored under one key.
type boltList struct {
	Entries   [][]byte  `json:"entries"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (b *Bolt) AppendBounded(ctx context.Context, key string, entry []byte, maxLen int, ttl time.Duration) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		lb := tx.Bucket(bucketLists)
		var list boltList
		if existing := lb.Get([]byte(key)); existing != nil {
			if err := json.Unmarshal(existing, &list); err != nil {
				return fmt.Errorf("decode list: %w", err)
			}
		}
		list.Entries = append(list.Entries, entry)
		if maxLen > 0 && len(list.Entries) > maxLen {
			list.Entries = list.Entries[len(list.Entries)-maxLen:]
		}
		if ttl > 0 {
			list.ExpiresAt = time.Now().Add(ttl)
		}
		data, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode list: %w", err)
		}
		if err := lb.Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket(bucketExpiry).Put([]byte(key), encodeTime(list.ExpiresAt))
	})
}

func (b *Bolt) ListBounded(ctx context.Context, key string) ([][]byte, error) {
	var out [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLists).Get([]byte(key))
		if v == nil {
			return nil
		}
		var list boltList
		if err := json.Unmarshal(v, &list); err != nil {
			return fmt.Errorf("decode list: %w", err)
		}
		if !list.ExpiresAt.IsZero() && time.Now().After(list.ExpiresAt) {
			return nil
		}
		out = list.Entries
		return nil
	})
	return out, err
}

// boltCASMu serializes check-and-set across the single Bolt handle; bbolt
// already serializes writers via its single-writer transaction model, but
// the check-then-set needs to run inside one Update to be atomic at all.
var boltCASMu sync.Mutex

func (b *Bolt) AtomicCheckAndSet(ctx context.Context, key string, expected, newValue []byte, ttl time.Duration) (bool, error) {
	boltCASMu.Lock()
	defer boltCASMu.Unlock()

	var ok bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		vals := tx.Bucket(bucketValues)
		existing := vals.Get([]byte(key))

		var currentValue []byte
		present := false
		if existing != nil {
			var rec entryRecord
			if jerr := json.Unmarshal(existing, &rec); jerr == nil {
				if rec.ExpiresAt.IsZero() || !time.Now().After(rec.ExpiresAt) {
					currentValue = rec.Value
					present = true
				}
			}
		}

		if expected == nil {
			if present {
				return nil // not absent, CAS fails
			}
		} else {
			if !present || !bytes.Equal(currentValue, expected) {
				return nil
			}
		}

		rec := entryRecord{Value: newValue}
		if ttl > 0 {
			rec.ExpiresAt = time.Now().Add(ttl)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode entry: %w", err)
		}
		if err := vals.Put([]byte(key), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketExpiry).Put([]byte(key), encodeTime(rec.ExpiresAt)); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return ok, err
}

func (b *Bolt) Close() error {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.janitorStop)
	<-b.janitorDone
	return b.db.Close()
}

var _ Store = (*Bolt)(nil)
