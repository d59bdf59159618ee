package artwork

import (
	"context"
	"errors"
	"sync"
	"time"
)

// cachedItem wraps a cached value with an expiration time.
type cachedItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Cache wraps a Finder and remembers its answers, misses included, for a TTL.
// It is safe for concurrent use.
type Cache struct {
	finder Finder
	ttl    time.Duration

	mu    sync.RWMutex
	items map[string]cachedItem[string] // empty value: known miss

	now func() time.Time
}

// NewCache creates a Cache. A ttl <= 0 defaults to 6 hours.
func NewCache(finder Finder, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cache{
		finder: finder,
		ttl:    ttl,
		items:  make(map[string]cachedItem[string]),
		now:    time.Now,
	}
}

// FindImage implements Finder
func (c *Cache) FindImage(ctx context.Context, name string) (string, error) {
	if url, ok := c.get(name); ok {
		if url == "" {
			return "", ErrUnavailable
		}
		return url, nil
	}

	url, err := c.finder.FindImage(ctx, name)
	if err != nil {
		// a cancelled caller says nothing about the game
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		c.set(name, "")
		return "", ErrUnavailable
	}
	c.set(name, url)
	if url == "" {
		return "", ErrUnavailable
	}
	return url, nil
}

func (c *Cache) get(name string) (string, bool) {
	c.mu.RLock()
	item, ok := c.items[name]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	if c.now().After(item.expiresAt) {
		// Expired - evict eagerly
		c.mu.Lock()
		delete(c.items, name)
		c.mu.Unlock()
		return "", false
	}
	return item.value, true
}

func (c *Cache) set(name, url string) {
	c.mu.Lock()
	c.items[name] = cachedItem[string]{value: url, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// PurgeExpired removes expired entries
func (c *Cache) PurgeExpired() {
	now := c.now()
	c.mu.Lock()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}

// Len returns the number of cached entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// StartJanitor purges expired entries every interval until ctx is done.
// If interval <= 0, a default of 30 minutes is used.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.PurgeExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}
