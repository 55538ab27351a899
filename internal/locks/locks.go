// Package locks provides per-resource mutual exclusion for world mutations.
//
// Each resource key (a sector or port identifier) gets its own lock, created
// on first use and retained for the process lifetime. The key space is
// bounded by the number of distinct resources in the universe, so entries
// are never evicted. Callers against the same key are serialized in arrival
// order; callers against different keys do not interfere.
package locks

import "sync"

// Manager owns one lock per resource key.
type Manager struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]chan struct{})}
}

// lockFor returns the lock channel for key, creating it on first use.
func (m *Manager) lockFor(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[key] = ch
	}
	return ch
}

// Lock acquires exclusive access to key and returns the release function.
// Waiters are queued in arrival order. The wait is unbounded under
// contention; the caller must release exactly once.
//
// TODO: accept a context for timeout cancellation once trade handlers
// start carrying deadlines.
func (m *Manager) Lock(key string) (release func()) {
	ch := m.lockFor(key)
	ch <- struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}
}

// With runs fn while holding the lock for key. The lock is released on all
// exit paths, including a panic inside fn.
func (m *Manager) With(key string, fn func() error) error {
	release := m.Lock(key)
	defer release()
	return fn()
}
