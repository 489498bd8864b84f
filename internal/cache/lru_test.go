package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsOldest(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a is now most recent
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, 30*time.Second)
	c.now = func() time.Time { return now }

	c.Set("accounts", 1)
	c.Set("groups", 2)
	now = now.Add(20 * time.Second)
	c.Set("groups", 3)

	now = now.Add(15 * time.Second)
	_, ok := c.Get("accounts")
	assert.False(t, ok, "expired")
	v, ok := c.Get("groups")
	assert.True(t, ok, "refreshed by the second Set")
	assert.Equal(t, 3, v)

	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())
}

func TestLRUCache_DeleteAndClear(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Size())
	c.Clear()
	assert.Zero(t, c.Size())
	c.Set("c", 3)
	assert.Equal(t, 1, c.Size(), "usable after Clear")
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Second)
	c.now = func() time.Time { return now }
	c.Set("a", 1)

	m := NewManager(nil)
	m.Register(c)
	now = now.Add(time.Minute)
	assert.Equal(t, 1, m.Sweep())

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
