package cache

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type counter struct {
	calls atomic.Int32
	body  []byte
	err   error
	gate  chan struct{}
}

func (c *counter) load(context.Context) ([]byte, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return c.body, c.err
}

func TestMiddleware_HitAndMiss(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(nil), nil, DefaultPolicy())
	l := &counter{body: []byte(`{"ok":true}`)}
	ctx := context.Background()

	for range 3 {
		got, err := mw.Execute(ctx, "stats", nil, l.load)
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if string(got) != `{"ok":true}` {
			t.Fatalf("Execute() = %s", got)
		}
	}
	if n := l.calls.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}

	if _, err := mw.Execute(ctx, "incidents", url.Values{"service": {"api"}}, l.load); err != nil {
		t.Fatal(err)
	}
	if n := l.calls.Load(); n != 2 {
		t.Fatalf("loads after new key = %d, want 2", n)
	}
}

func TestMiddleware_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mw := NewMiddleware(NewMemoryCache(clock), nil, Policy{DefaultTTL: 5 * time.Second})
	l := &counter{body: []byte("x")}

	_, _ = mw.Execute(context.Background(), "stats", nil, l.load)
	clock.Advance(5 * time.Second)
	_, _ = mw.Execute(context.Background(), "stats", nil, l.load)

	if n := l.calls.Load(); n != 2 {
		t.Fatalf("loads = %d, want 2", n)
	}
}

func TestMiddleware_ErrorsNotCached(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(nil), nil, DefaultPolicy())
	boom := errors.New("ledger down")
	l := &counter{err: boom}

	for range 2 {
		if _, err := mw.Execute(context.Background(), "stats", nil, l.load); !errors.Is(err, boom) {
			t.Fatalf("Execute() error = %v, want %v", err, boom)
		}
	}
	if n := l.calls.Load(); n != 2 {
		t.Fatalf("loads = %d, want 2", n)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(nil), nil, NoCachePolicy())
	l := &counter{body: []byte("x")}
	for range 3 {
		_, _ = mw.Execute(context.Background(), "stats", nil, l.load)
	}
	if n := l.calls.Load(); n != 3 {
		t.Fatalf("loads = %d, want 3", n)
	}
}

func TestMiddleware_ConcurrentMissesShareLoad(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(nil), nil, DefaultPolicy())
	l := &counter{body: []byte("x"), gate: make(chan struct{})}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mw.Execute(context.Background(), "stats", nil, l.load)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(l.gate)
	wg.Wait()

	if n := l.calls.Load(); n != 1 {
		t.Fatalf("loads = %d, want 1", n)
	}
}

func TestMiddleware_Invalidate(t *testing.T) {
	mw := NewMiddleware(NewMemoryCache(nil), nil, DefaultPolicy())
	l := &counter{body: []byte("x")}

	_, _ = mw.Execute(context.Background(), "stats", nil, l.load)
	if err := mw.Invalidate(context.Background(), "stats", nil); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	_, _ = mw.Execute(context.Background(), "stats", nil, l.load)

	if n := l.calls.Load(); n != 2 {
		t.Fatalf("loads = %d, want 2", n)
	}
}
