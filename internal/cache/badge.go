package cache

import (
	"sync"

	"github.com/OCAP2/globeview/pkg/core"
)

// BadgeImageCache maps cluster member counts to rendered badge images.
// Entries are never evicted during a session; the key space is bounded by
// the largest cluster the data set can produce.
type BadgeImageCache struct {
	mu      sync.RWMutex
	images  map[int]core.ImageHandle
	pending map[int]struct{}
}

// NewBadgeImageCache creates a new BadgeImageCache
func NewBadgeImageCache() *BadgeImageCache {
	return &BadgeImageCache{
		images:  make(map[int]core.ImageHandle),
		pending: make(map[int]struct{}),
	}
}

// Get retrieves the image for a member count
func (c *BadgeImageCache) Get(count int) (core.ImageHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[count]
	return img, ok
}

// Set stores the image for a member count and clears any pending mark.
func (c *BadgeImageCache) Set(count int, img core.ImageHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images[count] = img
	delete(c.pending, count)
}

// MarkPending records that an image for count is being generated. It returns
// false if a generation is already in flight or the image is cached.
func (c *BadgeImageCache) MarkPending(count int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.images[count]; ok {
		return false
	}
	if _, ok := c.pending[count]; ok {
		return false
	}
	c.pending[count] = struct{}{}
	return true
}

// ClearPending drops the pending mark without caching anything.
func (c *BadgeImageCache) ClearPending(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, count)
}

// Len returns the number of cached images
func (c *BadgeImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// Reset clears all images and pending marks
func (c *BadgeImageCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = make(map[int]core.ImageHandle)
	c.pending = make(map[int]struct{})
}
