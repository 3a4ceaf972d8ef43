package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giamma80/Nutrifit-mobile-sub000/internal/domain/providers"
)

// MemoryAdapter is an in-process CacheProvider used when Redis is not
// configured. It is shared by reference across the pipeline and is
// internally synchronized.
type MemoryAdapter struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryAdapter creates a new in-memory cache adapter
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		entries: make(map[string]memoryEntry),
	}
}

// Get retrieves a value from cache
func (a *MemoryAdapter) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	entry, ok := a.entries[key]
	a.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			a.mu.Lock()
			delete(a.entries, key)
			a.mu.Unlock()
		}
		return nil, fmt.Errorf("key not found: %s", key)
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value in cache with expiration
func (a *MemoryAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	a.mu.Lock()
	a.entries[key] = memoryEntry{
		value:     stored,
		expiresAt: time.Now().Add(time.Duration(expirationSeconds) * time.Second),
	}
	a.mu.Unlock()
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	delete(a.entries, key)
	a.mu.Unlock()
	return nil
}

// Exists checks if a non-expired key is present
func (a *MemoryAdapter) Exists(_ context.Context, key string) (bool, error) {
	a.mu.RLock()
	entry, ok := a.entries[key]
	a.mu.RUnlock()
	return ok && !time.Now().After(entry.expiresAt), nil
}

// Purge drops expired entries; the map otherwise only evicts lazily on Get
func (a *MemoryAdapter) Purge() int {
	now := time.Now()
	removed := 0

	a.mu.Lock()
	for key, entry := range a.entries {
		if now.After(entry.expiresAt) {
			delete(a.entries, key)
			removed++
		}
	}
	a.mu.Unlock()
	return removed
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)
