package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestMemoryCache_GetSetDelete(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "api:stats"); ok {
		t.Fatal("Get() on empty cache hit")
	}
	if err := c.Set(ctx, "api:stats", []byte(`{"totalIncidents":3}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok := c.Get(ctx, "api:stats")
	if !ok || string(got) != `{"totalIncidents":3}` {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
	if err := c.Delete(ctx, "api:stats"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "api:stats"); ok {
		t.Fatal("Get() after Delete hit")
	}
	if err := c.Delete(ctx, "api:stats"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewMemoryCache(clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 5*time.Second)

	clock.Advance(4 * time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("Get() before expiry missed")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("Get() at expiry hit")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after expired read, want 0", c.Len())
	}
}

func TestMemoryCache_NonPositiveTTLStoresNothing(t *testing.T) {
	c := NewMemoryCache(nil)
	for _, ttl := range []time.Duration{0, -time.Second} {
		if err := c.Set(context.Background(), "k", []byte("v"), ttl); err != nil {
			t.Fatalf("Set(ttl=%v) error = %v", ttl, err)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestMemoryCache_SetCopiesValue(t *testing.T) {
	c := NewMemoryCache(nil)
	buf := []byte("abc")
	_ = c.Set(context.Background(), "k", buf, time.Minute)
	buf[0] = 'x'

	got, _ := c.Get(context.Background(), "k")
	if string(got) != "abc" {
		t.Fatalf("Get() = %q, want abc", got)
	}
}

func TestMemoryCache_InvalidKey(t *testing.T) {
	c := NewMemoryCache(nil)
	if err := c.Set(context.Background(), "", []byte("v"), time.Minute); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Set(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = c.Set(ctx, key, []byte(key), time.Minute)
			c.Get(ctx, key)
			if i%7 == 0 {
				_ = c.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}
