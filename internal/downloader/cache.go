package downloader

import (
	"sync"
	"time"

	"github.com/kkdai/youtube/v2"
)

type cacheItem struct {
	video   *youtube.Video
	expires time.Time
}

// Cache keeps fetched video metadata. Every hit pushes the expiry back by
// the full TTL; expired items are dropped on access or on the next Put.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]*cacheItem
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*cacheItem),
	}
}

func (c *Cache) Get(id string) (*youtube.Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[id]
	if !ok {
		return nil, false
	}

	now := c.now()
	if !now.Before(item.expires) {
		delete(c.items, id)
		return nil, false
	}

	item.expires = now.Add(c.ttl)
	return item.video, true
}

func (c *Cache) Put(id string, v *youtube.Video) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if !now.Before(item.expires) {
			delete(c.items, key)
		}
	}

	c.items[id] = &cacheItem{video: v, expires: now.Add(c.ttl)}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
