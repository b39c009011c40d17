package backup

import (
	"sync"
	"time"
)

// dirCache remembers folders already created on the disk so each upload
// does not repeat the create calls.
type dirCache struct {
	mu   sync.RWMutex
	dirs map[string]time.Time
	ttl  time.Duration
}

func newDirCache(ttl time.Duration) *dirCache {
	return &dirCache{dirs: make(map[string]time.Time), ttl: ttl}
}

func (c *dirCache) Has(dir string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	at, ok := c.dirs[dir]
	return ok && time.Since(at) <= c.ttl
}

func (c *dirCache) Add(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs[dir] = time.Now()
}

// Invalidate forgets every folder, e.g. after one was deleted remotely.
func (c *dirCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dirs = make(map[string]time.Time)
}
