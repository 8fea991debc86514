package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Entry is a cached analysis result.
type Entry struct {
	Body      []byte    `json:"body"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired returns true if the entry has passed its expiration time.
func (e *Entry) Expired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Backend is the persistence interface behind the in-memory tier.
// Implementations may use SQLite or other backends.
type Backend interface {
	GetEntry(key string) (*Entry, error)
	SetEntry(key string, e *Entry) error
	// TouchEntry records a hit on a persisted entry.
	TouchEntry(key string) error
	DeleteExpired() error
}

// Cache is a two-tier cache for analysis results: an in-memory LRU in
// front of an optional persistent backend.
type Cache struct {
	memory *lru.Cache[string, *Entry]
	store  Backend
	ttl    time.Duration
}

// New creates a Cache.
//
//   - store is the persistent backend (may be nil for memory-only).
//   - ttlSeconds is the time-to-live for entries in seconds.
//   - maxMemoryEntries is the maximum number of entries in the in-memory LRU.
func New(store Backend, ttlSeconds, maxMemoryEntries int) (*Cache, error) {
	if maxMemoryEntries <= 0 {
		maxMemoryEntries = 256
	}

	memCache, err := lru.New[string, *Entry](maxMemoryEntries)
	if err != nil {
		return nil, fmt.Errorf("cache: creating LRU: %w", err)
	}

	return &Cache{
		memory: memCache,
		store:  store,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// Get looks up a key in both tiers. Backend hits are promoted into the
// in-memory LRU and recorded against the persisted entry.
func (c *Cache) Get(key string) (*Entry, bool) {
	// Tier 1: in-memory LRU.
	if entry, ok := c.memory.Get(key); ok {
		if !entry.Expired() {
			if c.store != nil {
				_ = c.store.TouchEntry(key)
			}
			return entry, true
		}
		c.memory.Remove(key)
	}

	// Tier 2: persistent backend.
	if c.store != nil {
		entry, err := c.store.GetEntry(key)
		if err == nil && entry != nil && !entry.Expired() {
			c.memory.Add(key, entry)
			_ = c.store.TouchEntry(key)
			return entry, true
		}
	}

	return nil, false
}

// Put stores a result in both tiers.
func (c *Cache) Put(key string, body []byte, model string) {
	now := time.Now()
	entry := &Entry{
		Body:      body,
		Model:     model,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	c.memory.Add(key, entry)

	if c.store != nil {
		if err := c.store.SetEntry(key, entry); err != nil {
			log.Warn().Err(err).Msg("cache: persist failed")
		}
	}
}

// StartPurger starts a background goroutine that periodically purges
// expired entries from the persistent backend and evicts expired entries
// from the in-memory LRU. It runs every 5 minutes until the context is
// cancelled. The returned channel is closed when the goroutine exits,
// allowing callers to synchronize shutdown before closing the backend.
func (c *Cache) StartPurger(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Error().Interface("panic", r).Msg("cache purger: recovered from panic")
						}
					}()
					c.purge()
				}()
			}
		}
	}()
	return done
}

// purge removes expired entries from both tiers.
func (c *Cache) purge() {
	if c.store != nil {
		_ = c.store.DeleteExpired()
	}

	keys := c.memory.Keys()
	for _, key := range keys {
		if entry, ok := c.memory.Peek(key); ok {
			if entry.Expired() {
				c.memory.Remove(key)
			}
		}
	}
}
