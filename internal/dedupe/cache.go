// ABOUTME: Thread-safe TTL cache for deduplicating webhook event deliveries.
// ABOUTME: The platform redelivers on non-200 responses; seen event ids are skipped.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// seenEntry stores the timestamp and list element for a cached event id.
type seenEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache tracks webhook event ids already dispatched, so a redelivered
// batch does not trigger duplicate research tasks or replies. Entries
// expire after a TTL and the cache is size-bounded with oldest-first
// eviction.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*seenEntry
	order   *list.List // event ids in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size. A
// background goroutine periodically removes expired entries until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// CheckAndMark atomically checks whether eventID has been seen and marks
// it if not. Returns true for a duplicate, false if the id is new and is
// now recorded. The single-lock form avoids a check-then-mark race when
// the same delivery arrives on two connections.
func (c *Cache) CheckAndMark(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[eventID]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	c.markLocked(eventID)
	return false
}

// markLocked records eventID as seen. Must be called with mu held.
func (c *Cache) markLocked(eventID string) {
	now := time.Now()

	if entry, exists := c.seen[eventID]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(eventID)
	c.seen[eventID] = &seenEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	eventID, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, eventID)
}

// Len returns the number of tracked event ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// cleanup periodically removes expired entries until Close.
func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for eventID, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, eventID)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
