// Package dedup remembers which message ids have already been processed so
// repeated polls of a source do not classify and store them twice.
package dedup

import (
	"context"
	"sync"
	"time"
)

// Deduper tracks processed message ids.
type Deduper interface {
	// Unseen returns the ids that have not been marked, in input order.
	Unseen(ctx context.Context, ids []uint64) ([]uint64, error)
	// Mark records ids as processed.
	Mark(ctx context.Context, ids []uint64) error
}

// Memory is an in-process Deduper. Entries expire after the TTL; a zero TTL
// keeps them forever.
type Memory struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[uint64]time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, seen: make(map[uint64]time.Time)}
}

func (m *Memory) Unseen(ctx context.Context, ids []uint64) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		at, ok := m.seen[id]
		if ok && (m.ttl <= 0 || now.Sub(at) < m.ttl) {
			continue
		}
		if ok {
			delete(m.seen, id)
		}
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) Mark(ctx context.Context, ids []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, id := range ids {
		m.seen[id] = now
	}
	return nil
}

// Len reports how many ids are currently remembered, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
