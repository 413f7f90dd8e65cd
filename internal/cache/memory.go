package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache interface using in-memory storage
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*cacheItem
	done chan struct{}
	once sync.Once
}

type cacheItem struct {
	value      []byte
	expiration time.Time // zero = never
}

func (i *cacheItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return newMemoryCache(time.Minute)
}

func newMemoryCache(sweep time.Duration) *MemoryCache {
	mc := &MemoryCache{
		data: make(map[string]*cacheItem),
		done: make(chan struct{}),
	}

	go mc.cleanup(sweep)

	return mc
}

// Get retrieves a value from cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.data[key]
	if !exists || item.expired(time.Now()) {
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in cache. A ttl <= 0 keeps the value until it is
// deleted.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := &cacheItem{value: value}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}
	m.data[key] = item

	return nil
}

// Delete removes a value from cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Len returns the number of stored items, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// cleanup periodically removes expired items
func (m *MemoryCache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for key, item := range m.data {
				if item.expired(now) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

