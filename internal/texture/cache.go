package texture

import (
	"image"
	"sync"

	"github.com/charmbracelet/log"
)

// Resolver resolves an image index to a decoded texture.
type Resolver interface {
	Resolve(idx int) *image.NRGBA
}

// Cache is a concurrency-safe texture cache. Failed decodes are cached as
// nil so a broken image is only reported once.
type Cache struct {
	mu     sync.RWMutex
	items  map[int]*cacheEntry
	index  *Index
	logger *log.Logger
}

type cacheEntry struct {
	img *image.NRGBA
}

// NewCache creates a new texture cache backed by the given index.
func NewCache(index *Index, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		items:  make(map[int]*cacheEntry),
		index:  index,
		logger: logger,
	}
}

// Resolve loads and caches an image. Returns nil if it cannot be decoded.
func (c *Cache) Resolve(i int) *image.NRGBA {
	// Fast path: read lock
	c.mu.RLock()
	if entry, exists := c.items[i]; exists {
		c.mu.RUnlock()
		return entry.img
	}
	c.mu.RUnlock()

	img, err := c.load(i)
	if err != nil {
		c.logger.Warn("texture unavailable", "image", i, "err", err)
	}

	// Write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, exists := c.items[i]; exists {
		return entry.img
	}
	c.items[i] = &cacheEntry{img: img}
	return img
}

func (c *Cache) load(i int) (*image.NRGBA, error) {
	data, err := c.index.Data(i)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Release drops every cached texture.
func (c *Cache) Release() {
	c.mu.Lock()
	c.items = make(map[int]*cacheEntry)
	c.mu.Unlock()
}
