package queue

import (
	"context"
	"testing"
	"time"

	"github.com/avarghese/clinicsync/internal/model"
)

type memKV struct{ data map[string][]byte }

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}
func (m *memKV) Set(_ context.Context, key string, val []byte) error {
	m.data[key] = val
	return nil
}
func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestQueue_EnqueuePreservesOrderAndStamps(t *testing.T) {
	ctx := context.Background()
	q := New(newMemKV())
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	i := 0
	q.now = func() time.Time {
		i++
		return base.Add(time.Duration(i) * time.Second)
	}

	for _, id := range []string{"a", "b", "c"} {
		op := model.PendingOp{Kind: model.OpCreateBooking, Booking: &model.Booking{ID: id}}
		if err := q.Enqueue(ctx, op); err != nil {
			t.Fatal(err)
		}
	}

	ops, err := q.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 3 {
		t.Fatalf("want 3 ops, got %d", len(ops))
	}
	for i, id := range []string{"a", "b", "c"} {
		if ops[i].Booking.ID != id {
			t.Fatalf("op %d: want %s, got %s", i, id, ops[i].Booking.ID)
		}
	}
	if !ops[1].QueuedAt.After(ops[0].QueuedAt) {
		t.Fatal("enqueue timestamps not increasing")
	}
}

func TestQueue_NoDeduplication(t *testing.T) {
	ctx := context.Background()
	q := New(newMemKV())

	op := model.PendingOp{Kind: model.OpUpdatePatient, Patient: &model.PatientRecord{ID: "p1"}}
	if err := q.Enqueue(ctx, op); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, op); err != nil {
		t.Fatal(err)
	}
	n, err := q.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("want both entries kept, got %d", n)
	}
}

func TestQueue_AllDoesNotDrain(t *testing.T) {
	ctx := context.Background()
	q := New(newMemKV())
	if err := q.Enqueue(ctx, model.PendingOp{Kind: model.OpCreatePatient, Patient: &model.PatientRecord{ID: "p"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := q.All(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := q.Len(ctx)
	if n != 1 {
		t.Fatalf("All removed entries: len=%d", n)
	}
}

func TestQueue_Clear(t *testing.T) {
	ctx := context.Background()
	q := New(newMemKV())
	_ = q.Enqueue(ctx, model.PendingOp{Kind: model.OpCreateBooking, Booking: &model.Booking{ID: "x"}})
	if err := q.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	ops, err := q.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Fatalf("queue not empty after Clear: %d", len(ops))
	}
}
