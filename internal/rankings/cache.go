package rankings

import (
	"os"
	"sync"
	"time"

	apperrors "github.com/tradewinds-game/tradewinds/internal/platform/errors"
)

// Cache serves snapshots without re-reading the file on every request.
// It stats the file and reloads only when the modification time moves,
// so a freshly published snapshot is picked up on the next read.
type Cache struct {
	mu      sync.Mutex
	loaded  bool
	modTime time.Time
	cached  Snapshot
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the snapshot at path, reusing the cached copy when the
// file has not changed since the last read. A missing file reports
// CodeRankingsSnapshotMissing and leaves any cached copy intact.
func (c *Cache) Get(path string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Surface the distinct missing code even when a stale copy
			// is cached; the caller decides whether stale data is usable.
			return Snapshot{}, apperrors.WithMetadata(apperrors.CodeRankingsSnapshotMissing,
				"rankings snapshot has not been generated yet", map[string]string{"path": path})
		}
		return Snapshot{}, err
	}

	if c.loaded && info.ModTime().Equal(c.modTime) {
		return c.cached, nil
	}

	snapshot, err := readSnapshot(path)
	if err != nil {
		return Snapshot{}, err
	}
	c.loaded = true
	c.modTime = info.ModTime()
	c.cached = snapshot
	return snapshot, nil
}

// Clear drops the cached snapshot so the next Get re-reads the file.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.modTime = time.Time{}
	c.cached = Snapshot{}
}
