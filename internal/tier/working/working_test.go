package working

import (
	"testing"
	"time"

	"github.com/cogmem/cogmem/internal/clock"
	"github.com/cogmem/cogmem/internal/domain"
)

func TestEvictionPrefersLowPriorityThenOldest(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mc := clock.NewMock(base)
	m := New(3, 300, mc, nil)

	mc.Set(base)
	if err := m.Store("a", make([]byte, 100), "text", domain.PriorityLow, false); err != nil {
		t.Fatalf("store a: %v", err)
	}
	mc.Advance(time.Second)
	if err := m.Store("b", make([]byte, 100), "text", domain.PriorityLow, false); err != nil {
		t.Fatalf("store b: %v", err)
	}
	mc.Advance(time.Second)
	if err := m.Store("c", make([]byte, 100), "text", domain.PriorityLow, false); err != nil {
		t.Fatalf("store c: %v", err)
	}
	mc.Advance(time.Second)
	if err := m.Store("d", make([]byte, 100), "text", domain.PriorityHigh, false); err != nil {
		t.Fatalf("store d: %v", err)
	}

	if _, err := m.Retrieve("a"); err != domain.ErrNotFound {
		t.Fatalf("expected a to be evicted (oldest last_accessed_at), got err=%v", err)
	}
	if _, err := m.Retrieve("d"); err != nil {
		t.Fatalf("expected d present: %v", err)
	}

	stats := m.Statistics()
	if stats.CurrentBytes > 300 {
		t.Errorf("current_bytes = %d, want <= 300", stats.CurrentBytes)
	}
	if stats.CurrentItems != 3 {
		t.Errorf("current_items = %d, want 3", stats.CurrentItems)
	}
	if stats.EvictionCount != 1 {
		t.Errorf("eviction_count = %d, want 1", stats.EvictionCount)
	}
}

func TestCriticalNeverEvictedButFailsWhenUnfittable(t *testing.T) {
	mc := clock.NewMock(time.Now())
	m := New(1, 100, mc, nil)

	if err := m.Store("only", make([]byte, 100), "text", domain.PriorityCritical, false); err != nil {
		t.Fatalf("store only: %v", err)
	}
	err := m.Store("second", make([]byte, 100), "text", domain.PriorityCritical, false)
	if err != domain.ErrCapacity {
		t.Fatalf("expected ErrCapacity inserting second Critical item, got %v", err)
	}
	if _, err := m.Retrieve("only"); err != nil {
		t.Errorf("expected first Critical item to survive: %v", err)
	}
}

func TestStorePreservesPriorityOnReplaceUnlessOverridden(t *testing.T) {
	mc := clock.NewMock(time.Now())
	m := New(10, 10_000, mc, nil)

	if err := m.Store("k", []byte("v1"), "text", domain.PriorityHigh, false); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := m.Store("k", []byte("v2"), "text", domain.PriorityLow, false); err != nil {
		t.Fatalf("store: %v", err)
	}
	item, err := m.Retrieve("k")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if item.Priority != domain.PriorityHigh {
		t.Errorf("priority = %v, want preserved High", item.Priority)
	}
	if string(item.Value) != "v2" {
		t.Errorf("value = %q, want v2", item.Value)
	}

	if err := m.Store("k", []byte("v3"), "text", domain.PriorityLow, true); err != nil {
		t.Fatalf("store: %v", err)
	}
	item, _ = m.Retrieve("k")
	if item.Priority != domain.PriorityLow {
		t.Errorf("priority = %v, want overridden Low", item.Priority)
	}
}

func TestSingleItemExceedingBMaxFailsImmediately(t *testing.T) {
	mc := clock.NewMock(time.Now())
	m := New(10, 50, mc, nil)

	if err := m.Store("big", make([]byte, 100), "text", domain.PriorityNormal, false); err != domain.ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
}

func TestScanYieldsInsertionOrder(t *testing.T) {
	mc := clock.NewMock(time.Now())
	m := New(10, 10_000, mc, nil)

	for _, k := range []string{"x", "y", "z"} {
		if err := m.Store(k, []byte("v"), "text", domain.PriorityNormal, false); err != nil {
			t.Fatalf("store %s: %v", k, err)
		}
	}
	scanned := m.Scan()
	if len(scanned) != 3 {
		t.Fatalf("scanned %d items, want 3", len(scanned))
	}
	for i, want := range []string{"x", "y", "z"} {
		if scanned[i].Key != want {
			t.Errorf("scan[%d] = %s, want %s", i, scanned[i].Key, want)
		}
	}
}
