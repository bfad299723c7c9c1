package wpclient

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// CacheStore is the storage behind the caching client. MemoryCache is the
// default implementation.
type CacheStore interface {
	Get(key string) (interface{}, bool)
	// Set stores value for ttl; a non-positive ttl uses the store default.
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string) bool
	// DeletePattern removes every key matching pattern and returns the count.
	DeletePattern(pattern string) int
	Clear() int
	Stats() CacheStats
	ResetStats()
	Len() int
	Keys() []string
	Close() error
}

// Sizer is implemented by values that know their approximate memory size.
type Sizer interface {
	Size() int64
}

// CacheEntry is one stored value with its freshness data.
type CacheEntry struct {
	Key        string
	Value      interface{}
	InsertedAt time.Time
	TTL        time.Duration
	Size       int64

	prev, next *CacheEntry
}

// ExpiresAt is InsertedAt+TTL; the entry is never served after it.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.InsertedAt.Add(e.TTL)
}

func (e *CacheEntry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt())
}

// MemoryCacheConfig bounds a MemoryCache.
type MemoryCacheConfig struct {
	// MaxEntries caps the number of entries; zero is unbounded.
	MaxEntries int
	// MaxMemoryBytes caps the summed entry sizes; zero is unbounded.
	MaxMemoryBytes int64
	DefaultTTL     time.Duration
	// CleanupInterval starts a background expiry sweep when positive.
	CleanupInterval time.Duration
	Clock           Clock
}

// MemoryCache is an in-process TTL cache with least-recently-used eviction
// by entry count and approximate bytes. One mutex guards the map, the
// recency list and the counters.
type MemoryCache struct {
	cfg   MemoryCacheConfig
	clock Clock

	mu         sync.Mutex
	items      map[string]*CacheEntry
	head, tail *CacheEntry
	bytes      int64

	hits      int64
	misses    int64
	evictions int64

	stop      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache builds a cache and starts the sweep if configured.
func NewMemoryCache(cfg MemoryCacheConfig) *MemoryCache {
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	c := &MemoryCache{
		cfg:   cfg,
		clock: clock,
		items: make(map[string]*CacheEntry),
		stop:  make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go c.sweepLoop(cfg.CleanupInterval)
	}
	return c
}

// Get returns the live value for key. An expired entry is removed and
// reported as a miss.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if entry.expired(c.clock.Now()) {
		c.removeEntry(entry)
		c.misses++
		return nil, false
	}

	c.hits++
	c.moveToFront(entry)
	return entry.Value, true
}

// Entry returns a copy of the stored entry without touching recency or
// statistics. Expired entries are reported as absent.
func (c *MemoryCache) Entry(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok || entry.expired(c.clock.Now()) {
		return CacheEntry{}, false
	}
	cp := *entry
	cp.prev, cp.next = nil, nil
	return cp, true
}

// Set stores value under key, replacing any previous value. A value larger
// than MaxMemoryBytes is not stored.
func (c *MemoryCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if ttl <= 0 {
		return
	}
	size := sizeOf(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxMemoryBytes > 0 && size > c.cfg.MaxMemoryBytes {
		if old, ok := c.items[key]; ok {
			c.removeEntry(old)
		}
		return
	}

	now := c.clock.Now()
	entry, ok := c.items[key]
	if ok {
		c.bytes += size - entry.Size
		entry.Value = value
		entry.Size = size
		entry.InsertedAt = now
		entry.TTL = ttl
		c.moveToFront(entry)
	} else {
		for c.cfg.MaxEntries > 0 && len(c.items) >= c.cfg.MaxEntries {
			if !c.evictOldest(nil) {
				break
			}
		}
		entry = &CacheEntry{
			Key:        key,
			Value:      value,
			InsertedAt: now,
			TTL:        ttl,
			Size:       size,
		}
		c.items[key] = entry
		c.pushFront(entry)
		c.bytes += size
	}

	for c.cfg.MaxMemoryBytes > 0 && c.bytes > c.cfg.MaxMemoryBytes {
		if !c.evictOldest(entry) {
			break
		}
	}
}

// Delete removes key and reports whether it was present.
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeEntry(entry)
	return true
}

// DeletePattern removes keys containing pattern. A leading "^" anchors the
// match at the start of the key and a trailing "$" at the end. An empty
// pattern removes nothing.
func (c *MemoryCache) DeletePattern(pattern string) int {
	if pattern == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.items {
		if MatchPattern(key, pattern) {
			c.removeEntry(entry)
			removed++
		}
	}
	return removed
}

// Clear removes every entry and returns how many were held.
func (c *MemoryCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]*CacheEntry)
	c.head, c.tail = nil, nil
	c.bytes = 0
	return n
}

// Stats returns the counters and current occupancy.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:        c.hits,
		Misses:      c.misses,
		TotalSize:   len(c.items),
		MemoryBytes: c.bytes,
		Evictions:   c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// ResetStats zeroes hits, misses and evictions.
func (c *MemoryCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys lists stored keys from most to least recently used.
func (c *MemoryCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.head; e != nil; e = e.next {
		keys = append(keys, e.Key)
	}
	return keys
}

// Close stops the background sweep. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// Purge removes expired entries and returns how many it dropped.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for e := c.tail; e != nil; {
		prev := e.prev
		if e.expired(now) {
			c.removeEntry(e)
			removed++
		}
		e = prev
	}
	return removed
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}

// evictOldest drops the least recently used entry unless it is keep.
func (c *MemoryCache) evictOldest(keep *CacheEntry) bool {
	victim := c.tail
	if victim == nil || victim == keep {
		return false
	}
	c.removeEntry(victim)
	c.evictions++
	return true
}

func (c *MemoryCache) removeEntry(e *CacheEntry) {
	delete(c.items, e.Key)
	c.unlink(e)
	c.bytes -= e.Size
}

func (c *MemoryCache) pushFront(e *CacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemoryCache) unlink(e *CacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *MemoryCache) moveToFront(e *CacheEntry) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

// MatchPattern reports whether key matches a DeletePattern pattern.
func MatchPattern(key, pattern string) bool {
	anchorStart := strings.HasPrefix(pattern, "^")
	anchorEnd := strings.HasSuffix(pattern, "$")
	needle := strings.TrimSuffix(strings.TrimPrefix(pattern, "^"), "$")
	if needle == "" {
		return false
	}

	switch {
	case anchorStart && anchorEnd:
		return key == needle
	case anchorStart:
		return strings.HasPrefix(key, needle)
	case anchorEnd:
		return strings.HasSuffix(key, needle)
	default:
		return strings.Contains(key, needle)
	}
}

// sizeOf approximates the memory a value occupies.
func sizeOf(value interface{}) int64 {
	switch v := value.(type) {
	case nil:
		return 0
	case Sizer:
		return v.Size()
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(b))
	}
}
