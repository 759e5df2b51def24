// Package working implements WorkingMemory: a bounded, priority+recency
// cache of raw context items for the current turn. All operations are
// synchronous and non-blocking, guarded by a single mutex around the
// eviction pass.
package working

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cogmem/cogmem/internal/domain"
)

// Memory is the WorkingMemory component. It holds no store dependency: the
// scratchpad is pure in-memory state, scoped to the process lifetime.
type Memory struct {
	mu sync.Mutex

	nMax      int
	bMaxBytes int64

	clock  domain.Clock
	logger *zap.Logger

	items         map[string]*domain.WorkingItem
	order         []string // insertion order, for Scan
	currentBytes  int64
	evictionCount int64
}

func New(nMax int, bMaxBytes int64, clk domain.Clock, logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Memory{
		nMax:      nMax,
		bMaxBytes: bMaxBytes,
		clock:     clk,
		logger:    logger,
		items:     make(map[string]*domain.WorkingItem),
	}
}

// Store inserts or replaces item under key. An existing item's priority is
// preserved unless overridePriority is true, per spec: "store with an
// existing key replaces in place and preserves priority unless the caller
// overrides."
func (m *Memory) Store(key string, value []byte, itemType string, priority domain.Priority, overridePriority bool) error {
	if int64(len(value)) > m.bMaxBytes {
		return domain.ErrCapacity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	size := int64(len(value))

	if existing, ok := m.items[key]; ok {
		if !overridePriority {
			priority = existing.Priority
		}
		m.currentBytes -= existing.SizeBytes
		existing.Value = value
		existing.ItemType = itemType
		existing.Priority = priority
		existing.LastAccessedAt = now
		existing.SizeBytes = size
		m.currentBytes += size
		return m.makeRoom(priority)
	}

	item := &domain.WorkingItem{
		Key:            key,
		Value:          value,
		ItemType:       itemType,
		Priority:       priority,
		InsertedAt:     now,
		LastAccessedAt: now,
		SizeBytes:      size,
	}
	m.items[key] = item
	m.order = append(m.order, key)
	m.currentBytes += size

	if err := m.makeRoom(priority); err != nil {
		// roll back: the insert itself could not be accommodated.
		delete(m.items, key)
		m.currentBytes -= size
		m.removeFromOrder(key)
		return err
	}
	return nil
}

// Retrieve returns a copy of the item under key and bumps its
// last_accessed_at, or domain.ErrNotFound.
func (m *Memory) Retrieve(key string) (domain.WorkingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return domain.WorkingItem{}, domain.ErrNotFound
	}
	item.LastAccessedAt = m.clock.Now()
	return *item, nil
}

// Delete removes key, if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[key]
	if !ok {
		return
	}
	m.currentBytes -= item.SizeBytes
	delete(m.items, key)
	m.removeFromOrder(key)
}

// Scan yields all items in insertion order.
func (m *Memory) Scan() []domain.WorkingItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.WorkingItem, 0, len(m.order))
	for _, k := range m.order {
		if item, ok := m.items[k]; ok {
			out = append(out, *item)
		}
	}
	return out
}

// Statistics reports current occupancy and lifetime eviction count.
func (m *Memory) Statistics() domain.WorkingMemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return domain.WorkingMemoryStats{
		CurrentItems:  len(m.items),
		CurrentBytes:  m.currentBytes,
		EvictionCount: m.evictionCount,
	}
}

func (m *Memory) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// makeRoom runs the eviction policy until both caps are satisfied. insertedPriority
// is the priority of the item that just triggered the check, used to decide
// whether an unfittable Critical insert must fail outright.
func (m *Memory) makeRoom(insertedPriority domain.Priority) error {
	for m.overCap() {
		victim, ok := m.pickVictim(domain.PriorityLow)
		if !ok {
			victim, ok = m.pickVictim(domain.PriorityNormal)
		}
		if !ok {
			victim, ok = m.pickVictim(domain.PriorityHigh)
		}
		if !ok {
			if insertedPriority == domain.PriorityCritical {
				return domain.ErrCapacity
			}
			// Nothing evictable remains (all Critical); caller's insert
			// itself was not Critical, so capacity simply cannot absorb it.
			return domain.ErrCapacity
		}
		m.evict(victim)
	}
	return nil
}

func (m *Memory) overCap() bool {
	return len(m.items) > m.nMax || m.currentBytes > m.bMaxBytes
}

// pickVictim finds the oldest-by-(last_accessed_at, key) item at exactly
// maxPriority or below, excluding Critical items, which are never picked
// here (Critical eviction only happens via the insert-fails-outright path).
func (m *Memory) pickVictim(maxPriority domain.Priority) (string, bool) {
	var candidates []*domain.WorkingItem
	for _, item := range m.items {
		if item.Priority <= maxPriority {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].LastAccessedAt.Equal(candidates[j].LastAccessedAt) {
			return candidates[i].LastAccessedAt.Before(candidates[j].LastAccessedAt)
		}
		return candidates[i].Key < candidates[j].Key
	})
	return candidates[0].Key, true
}

func (m *Memory) evict(key string) {
	item, ok := m.items[key]
	if !ok {
		return
	}
	m.currentBytes -= item.SizeBytes
	delete(m.items, key)
	m.removeFromOrder(key)
	m.evictionCount++
	m.logger.Debug("working memory eviction",
		zap.String("key", key),
		zap.String("priority", item.Priority.String()),
		zap.Int64("size_bytes", item.SizeBytes))
}
