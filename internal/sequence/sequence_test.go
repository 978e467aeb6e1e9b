package sequence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type memKV struct {
	data map[string][]byte
	fail bool
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.fail {
		return nil, false, errors.New("io error")
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, val []byte) error {
	if m.fail {
		return errors.New("io error")
	}
	m.data[key] = val
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestNextToken_MonotonicFromBaseline(t *testing.T) {
	ctx := context.Background()
	g := New(&memKV{data: map[string][]byte{}}, zap.NewNop())

	prev := int64(Baseline)
	for i := 0; i < 25; i++ {
		tok := g.NextToken(ctx)
		n, err := strconv.ParseInt(strings.TrimPrefix(tok, "T"), 10, 64)
		if err != nil {
			t.Fatalf("token %q: %v", tok, err)
		}
		if n != prev+1 {
			t.Fatalf("token %d: want %d, got %d", i, prev+1, n)
		}
		prev = n
	}
}

func TestNextToken_FirstTokenIsT1001(t *testing.T) {
	g := New(&memKV{data: map[string][]byte{}}, zap.NewNop())
	if tok := g.NextToken(context.Background()); tok != "T1001" {
		t.Fatalf("got %q", tok)
	}
}

func TestNextToken_ClockFallbackOnStorageFailure(t *testing.T) {
	g := New(&memKV{fail: true}, zap.NewNop())
	g.now = func() time.Time { return time.UnixMilli(1700000000123) }

	if tok := g.NextToken(context.Background()); tok != "T1700000000123" {
		t.Fatalf("got %q", tok)
	}
}
