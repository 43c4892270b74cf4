package dataloader

import (
	"container/list"
	"fmt"
	"image"
	"sync"
)

// ImageCache is a count-bounded LRU cache of decoded source images keyed by
// path. It implements dataset.DecodeCache and is safe for concurrent use.
// Caching decoded sources rather than transformed tensors keeps train-phase
// augmentation random across epochs.
type ImageCache struct {
	mu      sync.Mutex
	images  map[string]image.Image
	lru     *list.List
	lruMap  map[string]*list.Element
	maxSize int

	// Statistics
	hits   int64
	misses int64
}

// NewImageCache creates a cache holding at most maxSize decoded images. A
// non-positive maxSize falls back to DefaultCacheSize.
func NewImageCache(maxSize int) *ImageCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &ImageCache{
		images:  make(map[string]image.Image),
		lru:     list.New(),
		lruMap:  make(map[string]*list.Element),
		maxSize: maxSize,
	}
}

// Get retrieves a decoded image from the cache
func (c *ImageCache) Get(path string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if img, exists := c.images[path]; exists {
		if elem, ok := c.lruMap[path]; ok {
			c.lru.MoveToFront(elem)
		}
		c.hits++
		return img, true
	}

	c.misses++
	return nil, false
}

// Put adds a decoded image to the cache, evicting the least recently used
// entries once the cache is full
func (c *ImageCache) Put(path string, img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.images[path]; exists {
		if elem, ok := c.lruMap[path]; ok {
			c.lru.MoveToFront(elem)
		}
		return
	}

	elem := c.lru.PushFront(path)
	c.lruMap[path] = elem
	c.images[path] = img

	for len(c.images) > c.maxSize && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// removeElement removes an entry from the cache
func (c *ImageCache) removeElement(elem *list.Element) {
	path := elem.Value.(string)
	c.lru.Remove(elem)
	delete(c.lruMap, path)
	delete(c.images, path)
}

// Len returns the number of cached images
func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Clear drops all cached images. Statistics stay cumulative.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.images = make(map[string]image.Image)
	c.lru = list.New()
	c.lruMap = make(map[string]*list.Element)
}

// Stats returns cache statistics
func (c *ImageCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    len(c.images),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.calculateHitRate(),
	}
}

// calculateHitRate calculates the hit rate percentage
func (c *ImageCache) calculateHitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}

// ResetStats resets the hit and miss counters
func (c *ImageCache) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = 0
	c.misses = 0
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d images, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
