// Package sequence mints human-readable visit tokens from the durable counter
// slot. Tokens are announced at the reception desk, so they must stay short and
// strictly increasing under normal operation.
package sequence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avarghese/clinicsync/internal/store"
)

// Baseline is the counter value assumed when the slot was never written; the
// first issued token is therefore T1001.
const Baseline = 1000

// Generator issues visit tokens backed by the token_counter slot.
type Generator struct {
	counter *store.Scalar[int64]
	log     *zap.Logger
	now     func() time.Time
}

// New constructs a Generator over the given backend.
func New(kv store.KV, log *zap.Logger) *Generator {
	return &Generator{
		counter: store.NewScalar[int64](kv, store.KeyTokenCounter),
		log:     log,
		now:     time.Now,
	}
}

// NextToken increments the durable counter and returns the formatted token.
// If persistence fails the token falls back to wall-clock milliseconds: still
// locally unique, no longer monotonic with its neighbours.
func (g *Generator) NextToken(ctx context.Context) string {
	cur, ok, err := g.counter.Get(ctx)
	if err != nil {
		g.log.Warn("token counter read failed, using clock fallback", zap.Error(err))
		return fmt.Sprintf("T%d", g.now().UnixMilli())
	}
	if !ok {
		cur = Baseline
	}
	next := cur + 1
	if err := g.counter.Set(ctx, next); err != nil {
		g.log.Warn("token counter write failed, using clock fallback", zap.Error(err))
		return fmt.Sprintf("T%d", g.now().UnixMilli())
	}
	return fmt.Sprintf("T%d", next)
}
