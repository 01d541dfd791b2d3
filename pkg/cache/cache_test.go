package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// testBasicOperations exercises the Cache contract shared by both
// implementations.
func testBasicOperations(t *testing.T, c Cache[string, string]) {
	if value, exists := c.Get("key1"); exists {
		t.Errorf("Expected cache miss, got value: %s", value)
	}

	isNew, err := c.Set("key1", "value1")
	if err != nil {
		t.Fatalf("Unexpected error setting key: %v", err)
	}
	if !isNew {
		t.Error("Expected new entry creation")
	}

	if value, exists := c.Get("key1"); !exists || value != "value1" {
		t.Errorf("Expected 'value1', got value: %s, exists: %t", value, exists)
	}

	isNew, err = c.Set("key1", "value1_updated")
	if err != nil {
		t.Fatalf("Unexpected error updating key: %v", err)
	}
	if isNew {
		t.Error("Expected existing entry update")
	}

	deleted, err := c.Delete("key1")
	if err != nil {
		t.Fatalf("Unexpected error deleting key: %v", err)
	}
	if !deleted {
		t.Error("Expected successful deletion")
	}

	deleted, err = c.Delete("key1")
	if err != nil {
		t.Fatalf("Unexpected error deleting non-existent key: %v", err)
	}
	if deleted {
		t.Error("Expected deletion failure for non-existent key")
	}
}

func testClearAndSize(t *testing.T, c Cache[string, string]) {
	_, _ = c.Set("key1", "value1")
	_, _ = c.Set("key2", "value2")

	if c.Size() != 2 {
		t.Errorf("Expected size 2, got %d", c.Size())
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Unexpected error clearing: %v", err)
	}
	if c.Size() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", c.Size())
	}
}

func testRejectsZeroKey(t *testing.T, c Cache[string, string]) {
	if _, err := c.Set("", "value"); err == nil {
		t.Error("Expected error setting empty key")
	}
	if _, err := c.Delete(""); err == nil {
		t.Error("Expected error deleting empty key")
	}
}

func TestSimpleCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		c, err := NewSimple[string, string]()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		defer func() { _ = c.Close() }()
		testBasicOperations(t, c)
	})

	t.Run("clear and size", func(t *testing.T) {
		c, _ := NewSimple[string, string]()
		defer func() { _ = c.Close() }()
		testClearAndSize(t, c)
	})

	t.Run("rejects zero key", func(t *testing.T) {
		c, _ := NewSimple[string, string]()
		defer func() { _ = c.Close() }()
		testRejectsZeroKey(t, c)
	})
}

func TestSimpleCache_StructKeys(t *testing.T) {
	type compositeKey struct {
		Tenant string
		ID     string
	}

	c, err := NewSimple[compositeKey, int]()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer func() { _ = c.Close() }()

	k1 := compositeKey{Tenant: "acme", ID: "alert-1"}
	k2 := compositeKey{Tenant: "acme", ID: "alert-2"}

	_, _ = c.Set(k1, 10)
	_, _ = c.Set(k2, 20)

	if v, ok := c.Get(k1); !ok || v != 10 {
		t.Errorf("Expected 10, got %d exists=%t", v, ok)
	}
	if v, ok := c.Get(compositeKey{Tenant: "acme", ID: "alert-1"}); !ok || v != 10 {
		t.Errorf("Expected value identity for equal composite key, got %d exists=%t", v, ok)
	}

	// Zero-value composite key is rejected
	if _, err := c.Set(compositeKey{}, 1); err == nil {
		t.Error("Expected error setting zero-value composite key")
	}
}

func TestSimpleCache_EvictionCallback(t *testing.T) {
	var mu sync.Mutex
	evicted := make(map[string]string)

	c, _ := NewSimple[string, string](
		WithEvictionCallback[string, string](func(key, value string) {
			mu.Lock()
			evicted[key] = value
			mu.Unlock()
		}),
	)
	defer func() { _ = c.Close() }()

	_, _ = c.Set("key1", "value1")
	_, _ = c.Set("key2", "value2")
	_, _ = c.Delete("key1")
	_ = c.Clear()

	mu.Lock()
	defer mu.Unlock()
	if evicted["key1"] != "value1" || evicted["key2"] != "value2" {
		t.Errorf("Expected both entries evicted, got %v", evicted)
	}
}

func TestSimpleCache_Stats(t *testing.T) {
	c, _ := NewSimple[string, string]()
	defer func() { _ = c.Close() }()

	_, _ = c.Set("key1", "value1")
	c.Get("key1")
	c.Get("key1")
	c.Get("missing")

	stats := c.Stats()
	if stats.Hits() != 2 {
		t.Errorf("Expected 2 hits, got %d", stats.Hits())
	}
	if stats.Misses() != 1 {
		t.Errorf("Expected 1 miss, got %d", stats.Misses())
	}
	if ratio := stats.HitRatio(); ratio < 0.66 || ratio > 0.67 {
		t.Errorf("Expected hit ratio ~0.667, got %f", ratio)
	}
}

func TestSimpleCache_Concurrent(t *testing.T) {
	c, _ := NewSimple[string, int]()
	defer func() { _ = c.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%10)
				_, _ = c.Set(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Size() != 10 {
		t.Errorf("Expected 10 keys, got %d", c.Size())
	}
}

func TestTTLCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		c, err := NewTTL[string, string](time.Minute)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		defer func() { _ = c.Close() }()
		testBasicOperations(t, c)
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		if _, err := NewTTL[string, string](0); err == nil {
			t.Error("Expected error for zero TTL")
		}
	})

	t.Run("entries expire", func(t *testing.T) {
		c, _ := NewTTL[string, string](20*time.Millisecond,
			WithCleanupInterval[string, string](5*time.Millisecond))
		defer func() { _ = c.Close() }()

		_, _ = c.Set("key1", "value1")
		if _, exists := c.Get("key1"); !exists {
			t.Fatal("Expected hit before expiry")
		}

		time.Sleep(40 * time.Millisecond)

		if value, exists := c.Get("key1"); exists {
			t.Errorf("Expected miss after expiry, got %s", value)
		}
		if c.Stats().Evictions() == 0 {
			t.Error("Expected eviction to be recorded")
		}
	})

	t.Run("expired keys excluded from Keys", func(t *testing.T) {
		c, _ := NewTTL[string, string](10*time.Millisecond,
			WithCleanupInterval[string, string](time.Hour))
		defer func() { _ = c.Close() }()

		_, _ = c.Set("key1", "value1")
		time.Sleep(25 * time.Millisecond)

		if keys := c.Keys(); len(keys) != 0 {
			t.Errorf("Expected no live keys, got %v", keys)
		}
	})
}
