package tokenecon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet_HitsAndMisses(t *testing.T) {
	c := NewCache(time.Minute, 10)
	key := CacheKey("prompt", "ctx")

	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, "response")
	v, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "response", v)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestCache_TTLExpiration(t *testing.T) {
	c := NewCache(10*time.Millisecond, 10)
	key := CacheKey("p", "")
	c.Set(key, "v")

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Expirations)
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(0, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // promote a to MRU, b becomes LRU
	c.Set("c", 3)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCache_ClearPattern(t *testing.T) {
	c := NewCache(0, 10)
	c.Set("chat_history:abc:1", "x")
	c.Set("chat_history:abc:2", "y")
	c.Set("other:key", "z")

	c.ClearPattern("chat_history:abc:")
	_, ok1 := c.Get("chat_history:abc:1")
	_, ok2 := c.Get("chat_history:abc:2")
	_, ok3 := c.Get("other:key")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}

func TestCache_CleanupExpired(t *testing.T) {
	c := NewCache(10*time.Millisecond, 10)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)
	c.Set("b", 2)

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestCacheKey_StableAndDistinctOnContext(t *testing.T) {
	k1 := CacheKey("same prompt", "ctx-a")
	k2 := CacheKey("same prompt", "ctx-b")
	k3 := CacheKey("same prompt", "ctx-a")
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, k1, k3)
}
