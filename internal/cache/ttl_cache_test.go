package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("a", 1, 10*time.Millisecond)

	if got, ok := c.Get("a"); !ok || got != 1 {
		t.Fatalf("expected hit with 1, got %d ok=%v", got, ok)
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestTTLCachePurge(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("providers", "snapshot", time.Minute)
	c.Purge()

	if _, ok := c.Get("providers"); ok {
		t.Fatal("expected purge to drop entries")
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[int, string]()
	c.Set(1, "keep", 0)

	time.Sleep(5 * time.Millisecond)
	if got, ok := c.Get(1); !ok || got != "keep" {
		t.Fatalf("expected persistent entry, got %q ok=%v", got, ok)
	}
}
