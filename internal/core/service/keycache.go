package service

import (
	"container/list"
	"sync"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
)

// APIKeyCache is an LRU cache with TTL for validated API keys. It exists
// to keep hot keys from paying an Argon2-plus-repository round trip on
// every request.
type APIKeyCache struct {
	mu       sync.RWMutex
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration
}

type keyCacheEntry struct {
	keyID     string
	key       *domain.APIKey
	expiresAt time.Time
}

// NewAPIKeyCache creates a cache holding at most capacity keys for ttl each.
func NewAPIKeyCache(capacity int, ttl time.Duration) *APIKeyCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &APIKeyCache{
		items:    make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

// Get returns the cached key, or nil on a miss. Expired entries are
// removed on read; a hit refreshes the entry's LRU position.
func (c *APIKeyCache) Get(keyID string) *domain.APIKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[keyID]
	if !ok {
		return nil
	}
	entry := elem.Value.(*keyCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(elem, keyID)
		return nil
	}
	c.order.MoveToFront(elem)
	return entry.key
}

// Set caches key under keyID with a fresh TTL, evicting from the LRU tail
// when at capacity.
func (c *APIKeyCache) Set(keyID string, key *domain.APIKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[keyID]; ok {
		entry := elem.Value.(*keyCacheEntry)
		entry.key = key
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest, oldest.Value.(*keyCacheEntry).keyID)
	}

	elem := c.order.PushFront(&keyCacheEntry{
		keyID:     keyID,
		key:       key,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.items[keyID] = elem
}

// Delete removes keyID from the cache.
func (c *APIKeyCache) Delete(keyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[keyID]; ok {
		c.removeLocked(elem, keyID)
	}
}

// Clear empties the cache.
func (c *APIKeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of cached keys.
func (c *APIKeyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *APIKeyCache) removeLocked(elem *list.Element, keyID string) {
	c.order.Remove(elem)
	delete(c.items, keyID)
}
