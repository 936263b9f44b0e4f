package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCache_GetBeforeAndAfterTTL(t *testing.T) {
	c := New[string](WithSweepInterval(0))
	defer c.Close()

	c.Set("k", "v", 100*time.Millisecond)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit before TTL")
	}
	if got != "v" {
		t.Errorf("expected v, got %s", got)
	}

	time.Sleep(150 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL")
	}
}

func TestCache_GetOrCompute_CachesResult(t *testing.T) {
	c := New[int](WithSweepInterval(0))
	defer c.Close()

	ctx := context.Background()
	calls := 0
	produce := func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrCompute(ctx, "k", time.Minute, produce)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if calls != 1 {
		t.Errorf("expected 1 producer call, got %d", calls)
	}

	// Second call within TTL - should use cache
	v, err = c.GetOrCompute(ctx, "k", time.Minute, produce)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if calls != 1 {
		t.Errorf("expected still 1 producer call (cached), got %d", calls)
	}
}

func TestCache_GetOrCompute_FailureNotCached(t *testing.T) {
	c := New[int](WithSweepInterval(0))
	defer c.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	calls := 0

	_, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// Failure must not be cached; next call invokes the producer again
	v, err := c.GetOrCompute(ctx, "k", time.Minute, func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Errorf("expected 7, got %d", v)
	}
	if calls != 2 {
		t.Errorf("expected 2 producer calls, got %d", calls)
	}
}

func TestCache_Stats(t *testing.T) {
	c := New[string](WithSweepInterval(0))
	defer c.Close()

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	c.Get("a")       // hit
	c.Get("missing") // miss

	stats := c.Stats()
	if stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Keys != 2 {
		t.Errorf("expected 2 keys, got %d", stats.Keys)
	}
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive size estimate, got %d", stats.SizeBytes)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string](WithSweepInterval(0))
	defer c.Close()

	c.Set("a", "1", time.Minute)
	if !c.Delete("a") {
		t.Error("expected delete to report presence")
	}
	if c.Delete("a") {
		t.Error("expected delete of absent key to report false")
	}

	c.Set("b", "2", time.Minute)
	c.Clear()
	if stats := c.Stats(); stats.Keys != 0 {
		t.Errorf("expected empty cache after clear, got %d keys", stats.Keys)
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New[string](WithSweepInterval(0))
	defer c.Close()

	c.Set("old", "1", 10*time.Millisecond)
	c.Set("new", "2", time.Minute)

	time.Sleep(20 * time.Millisecond)
	c.sweep(time.Now())

	if stats := c.Stats(); stats.Keys != 1 {
		t.Errorf("expected 1 key after sweep, got %d", stats.Keys)
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](WithSweepInterval(0))
	defer c.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared", n, time.Minute)
				c.Get("shared")
				_, _ = c.GetOrCompute(ctx, "computed", time.Minute,
					func(ctx context.Context) (int, error) { return n, nil })
			}
		}(i)
	}
	wg.Wait()

	if _, ok := c.Get("shared"); !ok {
		t.Error("expected shared key present")
	}
}
