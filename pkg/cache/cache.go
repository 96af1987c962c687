// Package cache is a small in-process LRU with per-entry expiry. It backs the
// companion list, fetched avatar images and resolved secrets.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Options configures a Cache
type Options struct {
	// TTL applies to Set; zero keeps entries until evicted
	TTL time.Duration
	// CleanupInterval starts a janitor that drops expired entries
	CleanupInterval time.Duration
	// MaxItems bounds the cache; zero is unbounded
	MaxItems int
}

// Stats counts lookups since the cache was created
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Items     int    `json:"items"`
}

type entry struct {
	key     string
	value   any
	expires time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

// Cache is safe for concurrent use
type Cache struct {
	mu        sync.Mutex
	ttl       time.Duration
	maxItems  int
	order     *list.List // front is most recently used
	index     map[string]*list.Element
	onEvicted func(string, any)
	stats     Stats
	now       func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache. A positive cleanup interval starts a janitor goroutine
// that runs until Close.
func New(opts Options) *Cache {
	c := &Cache{
		ttl:      opts.TTL,
		maxItems: opts.MaxItems,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.janitor(opts.CleanupInterval)
	}
	return c
}

// Set stores value under the default TTL
func (c *Cache) Set(key string, value any) {
	c.SetWithExpiration(key, value, c.ttl)
}

// SetWithExpiration stores value for d; d <= 0 never expires
func (c *Cache) SetWithExpiration(key string, value any, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if d > 0 {
		expires = c.now().Add(d)
	}

	if el, ok := c.index[key]; ok {
		e := el.Value.(*entry)
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}

	if c.maxItems > 0 && c.order.Len() >= c.maxItems {
		c.removeElement(c.order.Back())
	}
	c.index[key] = c.order.PushFront(&entry{key: key, value: value, expires: expires})
}

// Get returns the live value for key and marks it recently used
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok || el.Value.(*entry).expired(c.now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

// Delete drops key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.removeElement(el)
	}
}

// Flush drops everything
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.removeElement(c.order.Back())
	}
}

// Count includes entries that expired but were not collected yet
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the lookup counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Items = c.order.Len()
	return s
}

// SetOnEvicted registers f for every removal. f runs with the cache lock
// held and must not call back into the cache.
func (c *Cache) SetOnEvicted(f func(string, any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

// Close stops the janitor
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// DeleteExpired collects expired entries
func (c *Cache) DeleteExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry).expired(now) {
			c.removeElement(el)
		}
		el = prev
	}
}

func (c *Cache) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *Cache) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry)
	delete(c.index, e.key)
	c.stats.Evictions++
	if c.onEvicted != nil {
		c.onEvicted(e.key, e.value)
	}
}
