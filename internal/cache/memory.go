package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

// MemoryStore is an in-memory LRU store with optional TTL
type MemoryStore struct {
	cache  *expirable.LRU[string, *Entry]
	logger zerolog.Logger
}

// EvictFunc is called whenever an entry leaves the store because of size or TTL
type EvictFunc func(key string)

// NewMemoryStore creates a new in-memory store.
// size <= 0 means unbounded, ttl <= 0 means entries never expire.
func NewMemoryStore(size int, ttl time.Duration, onEvict EvictFunc, logger zerolog.Logger) *MemoryStore {
	ms := &MemoryStore{
		logger: logger.With().Str("component", "cache").Logger(),
	}

	ms.cache = expirable.NewLRU[string, *Entry](size, func(key string, _ *Entry) {
		ms.logger.Debug().Str("key", key).Msg("entry evicted")
		if onEvict != nil {
			onEvict(key)
		}
	}, ttl)

	return ms
}

// Get retrieves an entry from the store
func (ms *MemoryStore) Get(key string) (*Entry, bool) {
	return ms.cache.Get(key)
}

// Set stores an entry, last write wins
func (ms *MemoryStore) Set(key string, entry *Entry) {
	if entry == nil {
		return
	}
	ms.cache.Add(key, entry)
}

// Len returns the number of live entries
func (ms *MemoryStore) Len() int {
	return ms.cache.Len()
}

// Close drops all entries
func (ms *MemoryStore) Close() {
	ms.cache.Purge()
}

// NoopStore is a store that keeps nothing (used when caching is disabled)
type NoopStore struct{}

// NewNoopStore creates a new no-op store
func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

// Get always returns not found
func (ns *NoopStore) Get(key string) (*Entry, bool) {
	return nil, false
}

// Set does nothing
func (ns *NoopStore) Set(key string, entry *Entry) {}

// Len is always zero
func (ns *NoopStore) Len() int { return 0 }

// Close does nothing
func (ns *NoopStore) Close() {}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*NoopStore)(nil)
)
