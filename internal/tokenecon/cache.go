// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tokenecon

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// CacheKey hashes prompt and an optional context string into the cache's
// lookup key (MD5 of `prompt | optional-context-hash`, per §4.4.2).
func CacheKey(prompt, context string) string {
	h := md5.Sum([]byte(prompt + "|" + context))
	return hex.EncodeToString(h[:])
}

type cacheEntry struct {
	key         string
	value       any
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int
}

// CacheStats is the §4.4.2 metrics snapshot.
type CacheStats struct {
	Size       int
	Hits       int64
	Misses     int64
	HitRate    float64
	Evictions  int64
	Expirations int64
}

// Cache is an LRU+TTL response cache, modeled on
// pkg/communication/memory_store.go's mutex-guarded map plus access-order
// tracking, adapted from reference-counted GC to LRU eviction with TTL.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxSize  int
	entries  map[string]*list.Element // key -> element holding *cacheEntry
	order    *list.List               // front = MRU, back = LRU

	hits, misses, evictions, expirations int64
}

// NewCache builds a Cache with the given TTL and max entry count.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get deletes expired entries and promotes valid hits to MRU.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	entry.lastAccess = time.Now()
	entry.accessCount++
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

// Set inserts or updates key; on overflow the LRU entry is evicted.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.createdAt = time.Now()
		entry.lastAccess = time.Now()
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{key: key, value: value, createdAt: time.Now(), lastAccess: time.Now()}
	el := c.order.PushFront(entry)
	c.entries[key] = el

	if c.maxSize > 0 && len(c.entries) > c.maxSize {
		back := c.order.Back()
		if back != nil {
			lru := back.Value.(*cacheEntry)
			c.order.Remove(back)
			delete(c.entries, lru.key)
			c.evictions++
		}
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
}

// ClearPattern removes every key with the given prefix, used for
// "chat_history:{owner}:*" invalidation (§4.7 pre-execution step 1).
func (c *Cache) ClearPattern(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

// CleanupExpired sweeps and removes expired entries without touching
// live ones' LRU position.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return 0
	}
	removed := 0
	for key, el := range c.entries {
		entry := el.Value.(*cacheEntry)
		if time.Since(entry.createdAt) > c.ttl {
			c.order.Remove(el)
			delete(c.entries, key)
			c.expirations++
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of cache metrics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Size:        len(c.entries),
		Hits:        c.hits,
		Misses:      c.misses,
		HitRate:     rate,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}
