package main

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keys and lifetimes
const (
	cacheKeyCategories = "all-categories"
	cacheKeyTips       = "community-tips"
	cacheKeyDeals      = "deals"

	categoriesTTL = time.Hour
	communityTTL  = 5 * time.Minute
)

// Cache stores JSON values with a TTL. Redis is used when a client is given;
// the in-process LRU always holds a copy and answers when Redis fails.
type Cache struct {
	redis  *redis.Client
	local  *lruCache
	logger *slog.Logger
}

func NewCache(client *redis.Client, size int, logger *slog.Logger) *Cache {
	return &Cache{
		redis:  client,
		local:  newLRUCache(size),
		logger: logger.With("component", "cache"),
	}
}

// Get decodes the value stored under key into dest and reports whether it
// was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	data, ok := c.get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			return data, true
		}
		if errors.Is(err, redis.Nil) {
			return nil, false
		}
		c.logger.Warn("Redis get failed, using local cache", "key", key, "error", err)
	}
	return c.local.Get(key)
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to encode cache value", "key", key, "error", err)
		return
	}
	c.local.Set(key, data, ttl)
	if c.redis != nil {
		if err := c.redis.SetEx(ctx, key, data, ttl).Err(); err != nil {
			c.logger.Warn("Redis set failed", "key", key, "error", err)
		}
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.local.Delete(key)
	}
	if c.redis != nil && len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn("Redis delete failed", "keys", keys, "error", err)
		}
	}
}

// cached returns the value under key, calling load and storing its result on
// a miss. Load errors are returned and nothing is cached.
func cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var value T
	if c.Get(ctx, key, &value) {
		return value, nil
	}
	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// lruCache is a size-bounded LRU with per-entry expiry.
type lruCache struct {
	mu      sync.Mutex
	maxSize int
	now     func() time.Time
	items   map[string]*list.Element
	lru     *list.List
}

type lruItem struct {
	key       string
	data      []byte
	expiresAt time.Time
}

func newLRUCache(maxSize int) *lruCache {
	return &lruCache{
		maxSize: maxSize,
		now:     time.Now,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := elem.Value.(*lruItem)
	if c.now().After(item.expiresAt) {
		c.removeElement(elem)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache) Set(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &lruItem{key: key, data: data, expiresAt: c.now().Add(ttl)}
	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	c.items[key] = c.lru.PushFront(item)
	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

func (c *lruCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *lruCache) removeElement(elem *list.Element) {
	delete(c.items, elem.Value.(*lruItem).key)
	c.lru.Remove(elem)
}
