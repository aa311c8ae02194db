package typing

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	target int64
	at     time.Time
}

// MemoryTracker keeps signals in a process-local map guarded by a mutex.
// Every access sweeps entries older than the eviction window first.
// Instances of a multi-process deployment do not see each other's signals.
type MemoryTracker struct {
	mu         sync.Mutex
	entries    map[int64]entry
	liveWindow time.Duration
	evictAfter time.Duration
	now        func() time.Time
}

// MemoryOption configures MemoryTracker
type MemoryOption func(*MemoryTracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryTracker) {
		m.now = now
	}
}

func NewMemoryTracker(cfg Config, opts ...MemoryOption) *MemoryTracker {
	live, evict := cfg.windows()
	m := &MemoryTracker{
		entries:    make(map[int64]entry),
		liveWindow: live,
		evictAfter: evict,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// sweepLocked must be called with mu held
func (m *MemoryTracker) sweepLocked(now time.Time) {
	for user, e := range m.entries {
		if now.Sub(e.at) > m.evictAfter {
			delete(m.entries, user)
		}
	}
}

func (m *MemoryTracker) Signal(_ context.Context, user, target int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)
	m.entries[user] = entry{target: target, at: now}

	return nil
}

func (m *MemoryTracker) TypingTo(_ context.Context, subject int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweepLocked(now)

	e, ok := m.entries[subject]
	if !ok || now.Sub(e.at) >= m.liveWindow {
		return 0, false, nil
	}

	return e.target, true, nil
}

// Len returns number of entries not collected yet
func (m *MemoryTracker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(m.now())
	return len(m.entries)
}
