// Package netwatch provides the connectivity signal the DAL and sync engine
// consume: a point-in-time online predicate plus edge-triggered events emitted
// when reachability flips.
package netwatch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is emitted on every connectivity edge.
type Event struct {
	Online bool
}

// Provider is the connectivity abstraction injected into the DAL and engine.
type Provider interface {
	// Online reports whether the remote system is currently reachable.
	Online() bool
	// Subscribe returns a channel receiving connectivity edges. Events are
	// dropped, not queued, for slow subscribers.
	Subscribe() <-chan Event
}

// ProbeFunc reports reachability once. It must bound its own timeout.
type ProbeFunc func(ctx context.Context) bool

// HTTPProbe probes the server's liveness path.
func HTTPProbe(base string) ProbeFunc {
	client := &http.Client{Timeout: 3 * time.Second}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < 500
	}
}

// Poller implements Provider by probing periodically.
type Poller struct {
	probe    ProbeFunc
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	online bool
	probed bool
	subs   []chan Event
}

var _ Provider = (*Poller)(nil)

// NewPoller constructs a Poller. interval <= 0 selects 10 seconds.
func NewPoller(probe ProbeFunc, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Poller{probe: probe, interval: interval, log: log}
}

// Online returns the last observed state, probing synchronously the first time
// so one-shot callers get a real answer before Run has ticked.
func (p *Poller) Online() bool {
	p.mu.Lock()
	probed, online := p.probed, p.online
	p.mu.Unlock()
	if probed {
		return online
	}
	return p.check(context.Background())
}

// Subscribe registers a connectivity-edge listener.
func (p *Poller) Subscribe() <-chan Event {
	ch := make(chan Event, 1)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Run probes until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.check(ctx)
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.check(ctx)
		}
	}
}

func (p *Poller) check(ctx context.Context) bool {
	online := p.probe(ctx)

	p.mu.Lock()
	changed := !p.probed || online != p.online
	p.online = online
	p.probed = true
	subs := append([]chan Event(nil), p.subs...)
	p.mu.Unlock()

	if changed {
		p.log.Info("connectivity changed", zap.Bool("online", online))
		for _, ch := range subs {
			select {
			case ch <- Event{Online: online}:
			default:
			}
		}
	}
	return online
}
