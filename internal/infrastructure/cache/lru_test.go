package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_GetAdd(t *testing.T) {
	c := NewLRU[string, int](2, 0)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Add("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Add("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)

	c.Add("a", 1)
	c.Add("b", 2)
	_, _ = c.Get("a") // a is now most recent
	c.Add("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_NeverExceedsCapacity(t *testing.T) {
	c := NewLRU[int, int](10, 0)
	for i := 0; i < 100; i++ {
		c.Add(i, i)
		assert.LessOrEqual(t, c.Len(), 10)
	}
}

func TestLRU_TTL(t *testing.T) {
	c := NewLRU[string, string](4, time.Minute)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }

	c.Add("k", "v")

	now = now.Add(59 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is removed on read")
}

func TestLRU_RemoveAndClear(t *testing.T) {
	c := NewLRU[string, int](4, 0)
	c.Add("a", 1)
	c.Add("b", 2)

	c.Remove("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_MinimumCapacity(t *testing.T) {
	c := NewLRU[string, int](0, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[string, int](16, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*i)%32)
				c.Add(key, i)
				_, _ = c.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
