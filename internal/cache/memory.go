package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache with an in-process map. Used when Redis is
// not configured and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	done chan struct{}
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		data: make(map[string]memoryItem),
		done: make(chan struct{}),
	}
	go mc.evictLoop()
	return mc
}

// Get retrieves a value from cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.data[key]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, ErrCacheMiss
	}
	return item.value, nil
}

// Set stores a value in cache
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = memoryItem{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes a value from cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Close stops the eviction goroutine
func (m *MemoryCache) Close() error {
	close(m.done)
	return nil
}

func (m *MemoryCache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, item := range m.data {
				if now.After(item.expiresAt) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}
