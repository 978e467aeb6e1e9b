// Package store provides the durable local persistence layer: named
// collections of identifier-keyed records and single scalar slots, all backed
// by a pluggable key-value store.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avarghese/clinicsync/internal/errs"
)

// Keys of the local namespace.
const (
	KeyBookings     = "bookings"
	KeyPatients     = "patients"
	KeySyncQueue    = "sync_queue"
	KeyUser         = "user"
	KeyTokenCounter = "token_counter"
)

// KV is the minimal durable backend contract. Implementations must survive
// process restarts; Get reports absence via ok=false, not an error.
type KV interface {
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}

// Entity is any record addressable by a caller-assigned identifier.
type Entity interface {
	EntityID() string
}

// Collection is an ordered, identifier-keyed collection of records persisted
// under a single key.
type Collection[T Entity] struct {
	kv  KV
	key string
}

// NewCollection binds a collection to a backend key.
func NewCollection[T Entity](kv KV, key string) *Collection[T] {
	return &Collection[T]{kv: kv, key: key}
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.key, err)
	}
	if !ok {
		return nil, nil
	}
	var recs []T
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.key, err)
	}
	return recs, nil
}

func (c *Collection[T]) save(ctx context.Context, recs []T) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", c.key, err)
	}
	return nil
}

// Upsert inserts rec if its identifier is unseen, otherwise replaces the
// existing record in place, preserving the order of the others.
func (c *Collection[T]) Upsert(ctx context.Context, rec T) (T, error) {
	recs, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	replaced := false
	for i := range recs {
		if recs[i].EntityID() == rec.EntityID() {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}
	if err := c.save(ctx, recs); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

// All returns every record, or an empty slice if the collection has never been
// written.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	recs, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []T{}
	}
	return recs, nil
}

// Get returns the record with the given identifier or errs.ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	recs, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	for i := range recs {
		if recs[i].EntityID() == id {
			return recs[i], nil
		}
	}
	return zero, errs.ErrNotFound
}

// Remove deletes by identifier. Removing an absent id is not an error.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	recs, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := recs[:0]
	for i := range recs {
		if recs[i].EntityID() != id {
			kept = append(kept, recs[i])
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	return c.save(ctx, kept)
}

// Scalar is a single durable slot holding one value of type T.
type Scalar[T any] struct {
	kv  KV
	key string
}

// NewScalar binds a scalar slot to a backend key.
func NewScalar[T any](kv KV, key string) *Scalar[T] {
	return &Scalar[T]{kv: kv, key: key}
}

// Get returns the stored value; ok=false when the slot was never set.
func (s *Scalar[T]) Get(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return zero, false, fmt.Errorf("load %s: %w", s.key, err)
	}
	if !ok {
		return zero, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return v, true, nil
}

// Set stores the value.
func (s *Scalar[T]) Set(ctx context.Context, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the slot.
func (s *Scalar[T]) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, s.key)
}
