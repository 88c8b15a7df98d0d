package store

import (
	"context"
	"sync"
	"time"
)

type (
	// MemoryStore keeps counters in process memory. Every process holds its
	// own counters, so running more than one instance against it multiplies
	// the effective limit. Use it for development or as a fallback only.
	MemoryStore struct {
		mu   sync.Mutex
		now  func() time.Time
		data map[string]*counter
	}

	counter struct {
		count   int64
		resetAt time.Time
	}
)

const DefaultSweepInterval = 5 * time.Minute

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}

	return &MemoryStore{now: now, data: make(map[string]*counter)}
}

func (m *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	c, ok := m.data[key]
	if !ok || now.After(c.resetAt) {
		c = &counter{count: 1, resetAt: now.Add(window)}
		m.data[key] = c

		return Counter{Count: c.count, ResetAt: c.resetAt}, nil
	}

	c.count++

	return Counter{Count: c.count, ResetAt: c.resetAt}, nil
}

func (m *MemoryStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)

	return nil
}

// Sweep removes counters whose window ended before now and reports how
// many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		now     = m.now()
		removed int
	)

	for k, c := range m.data {
		if c.resetAt.Before(now) {
			delete(m.data, k)
			removed++
		}
	}

	sweepRemovedTotal.Add(float64(removed))

	return removed
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.data)
}
