package embedding

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// CacheKey derives the SHA-256 cache key for (model, dimension, text)
// per spec §4.3, so that small/large vectors from different providers
// never collide.
func CacheKey(modelID string, dims int, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x1f%d\x1f%s", modelID, dims, text)))
	return hex.EncodeToString(sum[:])
}

// Stats summarizes cache usage for the memory-status tool (spec §4.3).
type Stats struct {
	Requested int64   `json:"requested"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hit_rate"`
}

type cacheEntry struct {
	key            string
	value          Pair
	hitCount       int64
	lastTouchedAt  time.Time
}

// Cache is a bounded, O(1)-promotion LRU cache of embedding vectors,
// grounded on hupe1980-vecgo's container/list-based LRUBlockCache.
type Cache struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*list.Element
	evictList *list.List

	requested int64
	hits      int64
	misses    int64
}

// NewCache creates a Cache with the given capacity. A non-positive
// capacity is replaced by the default of 10,000.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &Cache{
		capacity:  capacity,
		items:     make(map[string]*list.Element),
		evictList: list.New(),
	}
}

// Get returns the cached pair for key, moving it to the
// most-recently-used end on hit.
func (c *Cache) Get(key string) (Pair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requested++
	if el, ok := c.items[key]; ok {
		c.hits++
		ent := el.Value.(*cacheEntry)
		ent.hitCount++
		ent.lastTouchedAt = time.Now()
		c.evictList.MoveToFront(el)
		return ent.value, true
	}
	c.misses++
	return Pair{}, false
}

// Put inserts value under key, evicting the least-recently-used entry
// if the cache is at capacity. Two concurrent misses on the same key
// may both insert; the second replaces the first (spec §5, shared
// resources note — an accepted, harmless race).
func (c *Cache) Put(key string, value Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.value = value
		c.evictList.MoveToFront(el)
		return
	}

	ent := &cacheEntry{key: key, value: value, lastTouchedAt: time.Now()}
	el := c.evictList.PushFront(ent)
	c.items[key] = el

	for c.evictList.Len() > c.capacity {
		back := c.evictList.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	ent := el.Value.(*cacheEntry)
	delete(c.items, ent.key)
}

// Stats reports cumulative cache usage.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Requested: c.requested, Hits: c.hits, Misses: c.misses}
	if c.requested > 0 {
		s.HitRate = float64(c.hits) / float64(c.requested)
	}
	return s
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}
