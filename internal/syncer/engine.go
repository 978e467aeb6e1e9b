// Package syncer drains the pending-operation queue against the remote system.
// The engine is a two-state machine (idle/draining): triggers are connectivity
// edges, a periodic ticker and manual kicks, and at most one drain pass runs at
// a time.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/model"
	"github.com/avarghese/clinicsync/internal/netwatch"
	"github.com/avarghese/clinicsync/internal/queue"
	"github.com/avarghese/clinicsync/internal/remote"
	"github.com/avarghese/clinicsync/internal/store"
)

// DefaultInterval is the periodic drain interval.
const DefaultInterval = 30 * time.Second

// Result reports one drain pass.
type Result struct {
	Skipped   bool
	Reason    string // "offline" or "drain in progress" when Skipped
	Attempted int
	Failed    int
}

// Engine replays queued operations in enqueue order.
type Engine struct {
	queue    *queue.Queue
	bookings *store.Collection[model.Booking]
	patients *store.Collection[model.PatientRecord]
	remote   remote.Client
	net      netwatch.Provider
	log      *zap.Logger

	interval time.Duration
	draining atomic.Bool
	kicks    chan struct{}
}

// New constructs an Engine. interval <= 0 selects DefaultInterval.
func New(kv store.KV, q *queue.Queue, rc remote.Client, net netwatch.Provider, interval time.Duration, log *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		queue:    q,
		bookings: store.NewCollection[model.Booking](kv, store.KeyBookings),
		patients: store.NewCollection[model.PatientRecord](kv, store.KeyPatients),
		remote:   rc,
		net:      net,
		log:      log,
		interval: interval,
		kicks:    make(chan struct{}, 1),
	}
}

// Kick requests a drain pass from outside the engine's own triggers (e.g. the
// CLI's manual sync). Non-blocking; a pending kick is collapsed.
func (e *Engine) Kick() {
	select {
	case e.kicks <- struct{}{}:
	default:
	}
}

// Run listens for triggers until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	events := e.net.Subscribe()
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Online {
				e.log.Info("connectivity regained, draining sync queue")
				e.Drain(ctx)
			}
		case <-t.C:
			if e.net.Online() {
				e.Drain(ctx)
			}
		case <-e.kicks:
			e.Drain(ctx)
		}
	}
}

// Drain replays the full queue snapshot once. Per-entry failures are logged and
// do not abort the pass; after every entry has been attempted the queue is
// cleared unconditionally and the engine returns to idle.
func (e *Engine) Drain(ctx context.Context) Result {
	if !e.draining.CompareAndSwap(false, true) {
		return Result{Skipped: true, Reason: "drain in progress"}
	}
	defer e.draining.Store(false)

	// A timer can fire just as connectivity drops; leave the queue alone.
	if !e.net.Online() {
		return Result{Skipped: true, Reason: "offline"}
	}

	ops, err := e.queue.All(ctx)
	if err != nil {
		e.log.Error("sync queue read failed", zap.Error(err))
		return Result{Skipped: true, Reason: "queue read failed"}
	}
	if len(ops) == 0 {
		return Result{}
	}

	res := Result{Attempted: len(ops)}
	for i, op := range ops {
		if err := e.replay(ctx, op); err != nil {
			res.Failed++
			e.log.Warn("sync operation failed",
				zap.Int("index", i),
				zap.String("kind", op.Kind),
				zap.Error(err),
			)
		}
	}

	// Entries whose replay failed are dropped with the rest; they are not
	// re-queued.
	if err := e.queue.Clear(ctx); err != nil {
		e.log.Error("sync queue clear failed", zap.Error(err))
	}

	e.log.Info("sync pass finished",
		zap.Int("attempted", res.Attempted),
		zap.Int("failed", res.Failed),
	)
	return res
}

func (e *Engine) replay(ctx context.Context, op model.PendingOp) error {
	switch op.Kind {
	case model.OpCreateBooking, model.OpUpdateBooking:
		if op.Booking == nil {
			return errMalformed(op.Kind)
		}
		b := *op.Booking
		var err error
		if op.Kind == model.OpCreateBooking {
			_, err = e.remote.CreateBooking(ctx, b)
		} else {
			_, err = e.remote.UpdateBooking(ctx, b)
		}
		if err != nil {
			return err
		}
		b.Synced = true
		if _, err := e.bookings.Upsert(ctx, b); err != nil {
			e.log.Warn("synced flag write failed", zap.String("id", b.ID), zap.Error(err))
		}
		return nil

	case model.OpCreatePatient, model.OpUpdatePatient:
		if op.Patient == nil {
			return errMalformed(op.Kind)
		}
		p := *op.Patient
		var err error
		if op.Kind == model.OpCreatePatient {
			_, err = e.remote.CreatePatient(ctx, p)
		} else {
			_, err = e.remote.UpdatePatient(ctx, p)
		}
		if err != nil {
			return err
		}
		p.Synced = true
		if _, err := e.patients.Upsert(ctx, p); err != nil {
			e.log.Warn("synced flag write failed", zap.String("id", p.ID), zap.Error(err))
		}
		return nil

	default:
		return errMalformed(op.Kind)
	}
}

type malformedOpError string

func (m malformedOpError) Error() string { return "malformed pending operation: " + string(m) }

func errMalformed(kind string) error { return malformedOpError(kind) }
