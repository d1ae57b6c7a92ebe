package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is one cached file: its bytes, the content type it is served
// with, and when it stops being trusted.
type Entry struct {
	Data      []byte
	MIME      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the entry has passed its TTL.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// FileCache is a thread-safe in-memory cache for static file content.
// Entries expire after a fixed TTL; a background sweeper removes them.
type FileCache struct {
	items map[string]*Entry
	mu    sync.RWMutex

	ttl             time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// New creates a cache whose entries live for ttl.
func New(ttl time.Duration) *FileCache {
	c := &FileCache{
		items:           make(map[string]*Entry),
		ttl:             ttl,
		cleanupInterval: ttl / 2,
		stopCleanup:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get returns the cached entry for a path, or false on a miss or an
// expired entry.
func (c *FileCache) Get(path string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.items[path]
	if !exists || entry.IsExpired() {
		return nil, false
	}
	return entry, true
}

// Put stores file content under a path.
func (c *FileCache) Put(path string, data []byte, mime string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[path] = &Entry{
		Data:      data,
		MIME:      mime,
		ExpiresAt: time.Now().Add(c.ttl),
		CreatedAt: time.Now(),
	}
}

// Invalidate removes entries whose path starts with prefix; an empty
// prefix removes only expired entries.
func (c *FileCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prefix == "" {
		for path, entry := range c.items {
			if entry.IsExpired() {
				delete(c.items, path)
			}
		}
		return
	}

	for path := range c.items {
		if strings.HasPrefix(path, prefix) {
			delete(c.items, path)
		}
	}
}

func (c *FileCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop ends the background sweeper. Safe to call more than once.
func (c *FileCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Size returns the number of entries, expired ones included.
func (c *FileCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
