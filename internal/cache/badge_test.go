package cache

import (
	"sync"
	"testing"

	"github.com/OCAP2/globeview/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgeImageCache_New(t *testing.T) {
	c := NewBadgeImageCache()

	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestBadgeImageCache_SetAndGet(t *testing.T) {
	c := NewBadgeImageCache()

	c.Set(4, core.ImageHandle("data:image/png;base64,AAAA"))

	img, ok := c.Get(4)
	require.True(t, ok)
	assert.Equal(t, core.ImageHandle("data:image/png;base64,AAAA"), img)

	_, ok = c.Get(5)
	assert.False(t, ok)
}

func TestBadgeImageCache_Overwrite(t *testing.T) {
	c := NewBadgeImageCache()

	c.Set(3, "a")
	c.Set(3, "b")

	img, _ := c.Get(3)
	assert.Equal(t, core.ImageHandle("b"), img)
	assert.Equal(t, 1, c.Len())
}

func TestBadgeImageCache_Pending(t *testing.T) {
	c := NewBadgeImageCache()

	assert.True(t, c.MarkPending(7))
	assert.False(t, c.MarkPending(7), "second generation for the same count")

	c.Set(7, "img")
	assert.False(t, c.MarkPending(7), "already cached")

	assert.True(t, c.MarkPending(8))
	c.ClearPending(8)
	assert.True(t, c.MarkPending(8), "cleared marks can be retaken")
}

func TestBadgeImageCache_Reset(t *testing.T) {
	c := NewBadgeImageCache()

	c.Set(1, "a")
	c.Set(2, "b")
	c.MarkPending(3)
	c.Reset()

	assert.Equal(t, 0, c.Len())
	assert.True(t, c.MarkPending(3))
}

func TestBadgeImageCache_ConcurrentAccess(t *testing.T) {
	c := NewBadgeImageCache()
	var wg sync.WaitGroup

	for i := range 100 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c.MarkPending(n % 10)
			c.Set(n%10, "img")
			c.Get(n % 10)
		}(i)
	}

	wg.Wait()
	assert.Equal(t, 10, c.Len())
}
