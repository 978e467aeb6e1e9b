package store

import (
	"context"
	"errors"
	"testing"

	"github.com/avarghese/clinicsync/internal/errs"
	"github.com/avarghese/clinicsync/internal/model"
)

type memKV struct {
	data    map[string][]byte
	failAll bool
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

var errBroken = errors.New("disk gone")

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.failAll {
		return nil, false, errBroken
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, val []byte) error {
	if m.failAll {
		return errBroken
	}
	m.data[key] = append([]byte(nil), val...)
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	if m.failAll {
		return errBroken
	}
	delete(m.data, key)
	return nil
}

func TestCollection_UpsertInsertsAndReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Booking](newMemKV(), KeyBookings)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := c.Upsert(ctx, model.Booking{ID: id, PatientName: "first " + id}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if _, err := c.Upsert(ctx, model.Booking{ID: "b", PatientName: "replaced"}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, err := c.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records after replace, got %d", len(got))
	}
	if got[1].ID != "b" || got[1].PatientName != "replaced" {
		t.Fatalf("record b not replaced in place: %+v", got[1])
	}
	if got[0].ID != "a" || got[2].ID != "c" {
		t.Fatalf("order not preserved: %+v", got)
	}
}

func TestCollection_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Booking](newMemKV(), KeyBookings)

	b := model.Booking{ID: "x", PatientName: "K. Nair"}
	if _, err := c.Upsert(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Upsert(ctx, b); err != nil {
		t.Fatal(err)
	}
	got, err := c.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("double upsert duplicated the record: %d entries", len(got))
	}
}

func TestCollection_AllOnEmptyCollection(t *testing.T) {
	c := NewCollection[model.PatientRecord](newMemKV(), KeyPatients)
	got, err := c.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", got)
	}
}

func TestCollection_GetAndRemove(t *testing.T) {
	ctx := context.Background()
	c := NewCollection[model.Booking](newMemKV(), KeyBookings)

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if _, err := c.Upsert(ctx, model.Booking{ID: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "x"); err != nil {
		t.Fatalf("get after upsert: %v", err)
	}

	if err := c.Remove(ctx, "x"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// idempotent
	if err := c.Remove(ctx, "x"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if _, err := c.Get(ctx, "x"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound after remove, got %v", err)
	}
}

func TestCollection_StorageErrorPropagates(t *testing.T) {
	kv := newMemKV()
	kv.failAll = true
	c := NewCollection[model.Booking](kv, KeyBookings)

	if _, err := c.All(context.Background()); !errors.Is(err, errBroken) {
		t.Fatalf("want wrapped backend error, got %v", err)
	}
}

func TestScalar_RoundTripAndAbsence(t *testing.T) {
	ctx := context.Background()
	s := NewScalar[int64](newMemKV(), KeyTokenCounter)

	if _, ok, err := s.Get(ctx); err != nil || ok {
		t.Fatalf("unset slot: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, 1042); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx)
	if err != nil || !ok || v != 1042 {
		t.Fatalf("got %d ok=%v err=%v", v, ok, err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("slot still set after Clear")
	}
}
