// Package queue holds the durable list of pending remote-write intents.
// Entries are appended in arrival order and only ever removed wholesale after a
// full replay pass.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/store"
)

// Queue is the sync queue over a KV backend.
type Queue struct {
	kv  store.KV
	now func() time.Time
}

// New constructs a Queue.
func New(kv store.KV) *Queue {
	return &Queue{kv: kv, now: time.Now}
}

func (q *Queue) load(ctx context.Context) ([]model.PendingOp, error) {
	raw, ok, err := q.kv.Get(ctx, store.KeySyncQueue)
	if err != nil {
		return nil, fmt.Errorf("load sync queue: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var ops []model.PendingOp
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("decode sync queue: %w", err)
	}
	return ops, nil
}

func (q *Queue) save(ctx context.Context, ops []model.PendingOp) error {
	raw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	if err := q.kv.Set(ctx, store.KeySyncQueue, raw); err != nil {
		return fmt.Errorf("save sync queue: %w", err)
	}
	return nil
}

// Enqueue appends op, stamping the enqueue time. The same logical entity may be
// queued more than once; replay order plus idempotent remote upserts make the
// last entry win.
func (q *Queue) Enqueue(ctx context.Context, op model.PendingOp) error {
	ops, err := q.load(ctx)
	if err != nil {
		return err
	}
	op.QueuedAt = q.now()
	return q.save(ctx, append(ops, op))
}

// All returns a snapshot of the queue without removing anything.
func (q *Queue) All(ctx context.Context) ([]model.PendingOp, error) {
	ops, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []model.PendingOp{}
	}
	return ops, nil
}

// Len reports the current queue depth.
func (q *Queue) Len(ctx context.Context) (int, error) {
	ops, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}

// Clear empties the queue. Called only after a full replay pass.
func (q *Queue) Clear(ctx context.Context) error {
	return q.save(ctx, []model.PendingOp{})
}
