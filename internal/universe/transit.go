package universe

import (
	"sync"
	"time"
)

// Transit tracks which characters are currently in hyperspace. A character
// in transit cannot trade or adjust garrisons until arrival.
type Transit struct {
	mu       sync.Mutex
	arrivals map[string]time.Time
	clock    func() time.Time
}

// NewTransit creates an empty transit tracker.
func NewTransit() *Transit {
	return &Transit{
		arrivals: make(map[string]time.Time),
		clock:    time.Now,
	}
}

// Enter puts a character into hyperspace until the given duration elapses.
// Re-entering overwrites the prior arrival time.
func (t *Transit) Enter(characterID string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.arrivals[characterID] = t.clock().Add(duration)
}

// InHyperspace reports whether the character is still in transit. Arrived
// characters are pruned on read.
func (t *Transit) InHyperspace(characterID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	arrival, ok := t.arrivals[characterID]
	if !ok {
		return false
	}
	if t.clock().Before(arrival) {
		return true
	}
	delete(t.arrivals, characterID)
	return false
}
