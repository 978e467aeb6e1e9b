package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/netwatch"
	"github.com/avarghese/clinicsync/internal/queue"
	"github.com/avarghese/clinicsync/internal/remote"
	"github.com/avarghese/clinicsync/internal/store"
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

type fakeNet struct{ online bool }

func (f *fakeNet) Online() bool                     { return f.online }
func (f *fakeNet) Subscribe() <-chan netwatch.Event { return make(chan netwatch.Event) }

// slowRemote records replayed ids and can block or fail selectively.
type slowRemote struct {
	mu      sync.Mutex
	ids     []string
	failIDs map[string]bool
	block   chan struct{} // when non-nil, calls wait here
}

var _ remote.Client = (*slowRemote)(nil)

func (r *slowRemote) record(id string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	if r.failIDs[id] {
		return errors.New("remote rejected " + id)
	}
	return nil
}

func (r *slowRemote) Login(context.Context, string, string) (remote.LoginResult, error) {
	return remote.LoginResult{}, errors.New("not used")
}
func (r *slowRemote) ListBookings(context.Context) ([]model.Booking, error)       { return nil, nil }
func (r *slowRemote) ListPatients(context.Context) ([]model.PatientRecord, error) { return nil, nil }
func (r *slowRemote) SearchPatients(context.Context, string) ([]model.PatientRecord, error) {
	return nil, nil
}
func (r *slowRemote) CreateBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	return b, r.record(b.ID)
}
func (r *slowRemote) UpdateBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	return b, r.record(b.ID)
}
func (r *slowRemote) CreatePatient(_ context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	return p, r.record(p.ID)
}
func (r *slowRemote) UpdatePatient(_ context.Context, p model.PatientRecord) (model.PatientRecord, error) {
	return p, r.record(p.ID)
}

func enqueueBooking(t *testing.T, q *queue.Queue, id string) {
	t.Helper()
	err := q.Enqueue(context.Background(), model.PendingOp{
		Kind:    model.OpCreateBooking,
		Booking: &model.Booking{ID: id, PatientName: "x", Mobile: "1", Reference: "r", AppointmentDate: "d"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDrain_SuccessClearsQueueAndMarksSynced(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	q := queue.New(kv)
	rc := &slowRemote{}
	e := New(kv, q, rc, &fakeNet{online: true}, 0, zap.NewNop())

	bookings := store.NewCollection[model.Booking](kv, store.KeyBookings)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := bookings.Upsert(ctx, model.Booking{ID: id}); err != nil {
			t.Fatal(err)
		}
		enqueueBooking(t, q, id)
	}

	res := e.Drain(ctx)
	if res.Skipped || res.Attempted != 3 || res.Failed != 0 {
		t.Fatalf("result: %+v", res)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("queue not cleared: %d", n)
	}
	got, _ := bookings.All(ctx)
	for _, b := range got {
		if !b.Synced {
			t.Fatalf("booking %s not marked synced", b.ID)
		}
	}
	// replay happened in enqueue order
	if rc.ids[0] != "a" || rc.ids[1] != "b" || rc.ids[2] != "c" {
		t.Fatalf("replay order: %v", rc.ids)
	}
}

func TestDrain_SkipsWhenOffline(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	q := queue.New(kv)
	e := New(kv, q, &slowRemote{}, &fakeNet{online: false}, 0, zap.NewNop())
	enqueueBooking(t, q, "a")

	res := e.Drain(ctx)
	if !res.Skipped || res.Reason != "offline" {
		t.Fatalf("result: %+v", res)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatal("offline drain must not touch the queue")
	}
}

func TestDrain_PerEntryFailureDoesNotAbortPass(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	q := queue.New(kv)
	rc := &slowRemote{failIDs: map[string]bool{"b": true}}
	e := New(kv, q, rc, &fakeNet{online: true}, 0, zap.NewNop())

	for _, id := range []string{"a", "b", "c"} {
		enqueueBooking(t, q, id)
	}
	res := e.Drain(ctx)
	if res.Attempted != 3 || res.Failed != 1 {
		t.Fatalf("result: %+v", res)
	}
	if len(rc.ids) != 3 {
		t.Fatalf("pass aborted early: %v", rc.ids)
	}
	// cleared even though one entry failed
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("queue not cleared: %d", n)
	}
}

func TestDrain_ReentrantGuard(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	q := queue.New(kv)
	rc := &slowRemote{block: make(chan struct{})}
	e := New(kv, q, rc, &fakeNet{online: true}, 0, zap.NewNop())
	enqueueBooking(t, q, "a")

	first := make(chan Result, 1)
	go func() { first <- e.Drain(ctx) }()

	// wait until the first pass is inside the remote call
	deadline := time.After(2 * time.Second)
	for {
		if e.draining.Load() {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first drain never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second := e.Drain(ctx)
	if !second.Skipped || second.Reason != "drain in progress" {
		t.Fatalf("second pass: %+v", second)
	}

	close(rc.block)
	res := <-first
	if res.Skipped || res.Attempted != 1 {
		t.Fatalf("first pass: %+v", res)
	}

	// guard released: a later pass runs again
	if res := e.Drain(ctx); res.Skipped {
		t.Fatalf("guard stuck: %+v", res)
	}
}

func TestDrain_EmptyQueueIsANoop(t *testing.T) {
	kv := newMemKV()
	e := New(kv, queue.New(kv), &slowRemote{}, &fakeNet{online: true}, 0, zap.NewNop())
	res := e.Drain(context.Background())
	if res.Skipped || res.Attempted != 0 {
		t.Fatalf("result: %+v", res)
	}
}

func TestRun_DrainsOnOnlineEdgeAndKick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := newMemKV()
	q := queue.New(kv)
	rc := &slowRemote{}

	events := make(chan netwatch.Event, 1)
	net := &eventNet{online: true, ch: events}
	e := New(kv, q, rc, net, time.Hour, zap.NewNop())

	enqueueBooking(t, q, "a")
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	events <- netwatch.Event{Online: true}
	waitFor(t, func() bool {
		n, _ := q.Len(context.Background())
		return n == 0
	})

	enqueueBooking(t, q, "b")
	e.Kick()
	waitFor(t, func() bool {
		n, _ := q.Len(context.Background())
		return n == 0
	})

	cancel()
	<-done
}

type eventNet struct {
	online bool
	ch     chan netwatch.Event
}

func (n *eventNet) Online() bool                     { return n.online }
func (n *eventNet) Subscribe() <-chan netwatch.Event { return n.ch }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
