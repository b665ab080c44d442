package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set("a", "1")
	c.Set("b", "2")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	// "b" is now least recently used.
	c.Set("c", "3")
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Errorf("Size = %d, want 2", c.Size())
	}

	c.Set("a", "updated")
	if v, _ := c.Get("a"); v != "updated" {
		t.Errorf("overwrite lost: %q", v)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.now)

	c.Set("x", 1)
	c.Set("y", 2)
	clock.t = clock.t.Add(30 * time.Second)
	c.Set("y", 3)

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Error("x should have expired")
	}
	if v, ok := c.Get("y"); !ok || v != 3 {
		t.Errorf("y = %d, %v", v, ok)
	}

	clock.t = clock.t.Add(time.Hour)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("Size = %d after cleanup", c.Size())
	}
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("u1|2025-01|All", 1)
	c.Set("u1|2025-01|Food", 2)
	c.Set("u10|2025-01|All", 3)
	c.Set("u2|2025-01|All", 4)

	if n := c.DeletePrefix("u1|"); n != 2 {
		t.Fatalf("DeletePrefix = %d, want 2", n)
	}
	if _, ok := c.Get("u10|2025-01|All"); !ok {
		t.Error("u10 must survive a u1 invalidation")
	}
	c.Delete("u2|2025-01|All")
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestLRUCacheSetIfGeneration(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)

	gen := c.Generation("u1|")
	c.DeletePrefix("u1|")
	if c.SetIfGeneration("u1|2025-01|All", "u1|", gen, 10) {
		t.Fatal("stale generation must not be stored")
	}
	if _, ok := c.Get("u1|2025-01|All"); ok {
		t.Fatal("stale value was cached")
	}

	gen = c.Generation("u1|")
	c.DeletePrefix("u2|")
	if !c.SetIfGeneration("u1|2025-01|All", "u1|", gen, 100) {
		t.Fatal("another prefix's invalidation must not block u1")
	}
	if v, ok := c.Get("u1|2025-01|All"); !ok || v != 100 {
		t.Errorf("u1 = %d, %v", v, ok)
	}
}

func TestLRUCacheConcurrent(t *testing.T) {
	c := NewLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (i*j)%80)
				c.Set(key, j)
				c.Get(key)
				if j%50 == 0 {
					c.DeletePrefix("k1")
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Errorf("Size = %d exceeds max", c.Size())
	}
}

type countingCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCleaner) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1
}

func TestManager(t *testing.T) {
	m := NewManager()
	a, b := &countingCleaner{}, &countingCleaner{}
	m.Register(a)
	m.Register(b)

	if n := m.CleanNow(); n != 2 {
		t.Fatalf("CleanNow = %d, want 2", n)
	}

	m.StartCleanup(5 * time.Millisecond)
	m.StartCleanup(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	m.Stop()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls < 2 {
		t.Errorf("periodic cleanup did not run: %d calls", a.calls)
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewManager().Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup")
	}
}
