package assistant

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// Cache is an LRU cache with per-entry TTL, injected into whichever layer
// needs it rather than living as an ambient global. The chat layer keys its
// composed agent prompt on ContextKey so it survives across turns until the
// document meaningfully changes.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*list.Element
	order   *list.List
}

type cacheEntry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// NewCache returns a cache bounded to maxSize entries with the given default
// TTL.
func NewCache[V any](maxSize int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached value and refreshes its recency. Expired entries
// are dropped and report a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	entry := el.Value.(*cacheEntry[V])
	if entry.expires.Before(c.now()) {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}
	c.order.MoveToBack(el)
	return entry.value, true
}

// Set stores a value under the default TTL, evicting the least recently
// used entry when full.
func (c *Cache[V]) Set(key string, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores a value with an explicit TTL.
func (c *Cache[V]) SetTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry[V])
		entry.value = value
		entry.expires = c.now().Add(ttl)
		c.order.MoveToBack(el)
		return
	}
	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry[V]).key)
		}
	}
	c.entries[key] = c.order.PushBack(&cacheEntry[V]{
		key:     key,
		value:   value,
		expires: c.now().Add(ttl),
	})
}

// Delete removes a key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return c.order.Len()
}

// sweep drops expired entries. Caller holds the lock.
func (c *Cache[V]) sweep() {
	now := c.now()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*cacheEntry[V])
		if entry.expires.Before(now) {
			c.order.Remove(el)
			delete(c.entries, entry.key)
		}
		el = next
	}
}

// ContextKey is the cache invalidation key for per-document AI state: the
// agent is reused while the title and word count are unchanged, and rebuilt
// when either moves.
func ContextKey(title string, totalWords int) string {
	return fmt.Sprintf("title=%s;words=%d", title, totalWords)
}
