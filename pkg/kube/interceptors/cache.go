package interceptors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
)

// CacheType represents the type of cache backend.
type CacheType string

const (
	// CacheTypeMemory represents in-memory cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS represents NATS KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone represents no caching.
	CacheTypeNone CacheType = "none"
)

// CacheEntry is a cached response. An entry past FreshUntil but not yet
// expired is revalidated with If-None-Match when it carries an ETag.
type CacheEntry struct {
	Data       []byte    `json:"data"`
	ExpiresAt  time.Time `json:"expires_at"`
	FreshUntil time.Time `json:"fresh_until,omitzero"`
	ETag       string    `json:"etag,omitempty"`
}

// Fresh reports whether the entry can be served without asking the server.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return e.FreshUntil.IsZero() || now.Before(e.FreshUntil)
}

// Expired reports whether the entry has passed its expiry time.
func (e *CacheEntry) Expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Cache stores responses for the ResponseCache interceptor. Get returns an
// error wrapping constants.ErrCacheMiss for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
}

// MemoryCache is a bounded in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*CacheEntry
}

// NewMemoryCache creates a cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		maxSize: maxSize,
		entries: make(map[string]*CacheEntry),
	}
}

// Get returns the entry for key.
func (c *MemoryCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: key not found: %s", constants.ErrCacheMiss, key)
	}

	if entry.Expired() {
		delete(c.entries, key)

		return nil, fmt.Errorf("%w: entry expired: %s", constants.ErrCacheMiss, key)
	}

	return entry, nil
}

// Set stores entry under key, evicting expired entries first and then the
// entry closest to expiry when the cache is full.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evict()
	}

	c.entries[key] = entry

	return nil
}

func (c *MemoryCache) evict() {
	var (
		victim string
		oldest time.Time
	)

	for key, entry := range c.entries {
		if entry.Expired() {
			delete(c.entries, key)

			continue
		}

		if victim == "" || entry.ExpiresAt.Before(oldest) {
			victim = key
			oldest = entry.ExpiresAt
		}
	}

	if len(c.entries) >= c.maxSize && victim != "" {
		delete(c.entries, victim)
	}
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)

	return nil
}

// Clear removes every entry.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)

	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// NoOpCache is a cache that does nothing (no caching).
type NoOpCache struct{}

// Get always misses.
func (NoOpCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	return nil, fmt.Errorf("%w: cache disabled: %s", constants.ErrCacheMiss, key)
}

// Set does nothing.
func (NoOpCache) Set(context.Context, string, *CacheEntry) error { return nil }

// Delete does nothing.
func (NoOpCache) Delete(context.Context, string) error { return nil }

// Clear does nothing.
func (NoOpCache) Clear(context.Context) error { return nil }

// Has always returns false.
func (NoOpCache) Has(context.Context, string) bool { return false }

// CacheConfig configures a cache backend.
type CacheConfig struct {
	// Type is the cache backend type.
	Type CacheType

	// MaxSize bounds the memory cache.
	MaxSize int

	// NATS configures the NATS KV cache.
	NATS *NATSKVConfig
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:    CacheTypeMemory,
		MaxSize: constants.DefaultCacheSize,
	}
}

// NewCacheFromConfig creates a cache backend from configuration. Backends
// holding connections implement io.Closer.
func NewCacheFromConfig(ctx context.Context, config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory, "":
		return NewMemoryCache(config.MaxSize), nil
	case CacheTypeNATS:
		if config.NATS == nil || config.NATS.URL == "" {
			return nil, constants.ErrNATSURLRequired
		}

		return NewNATSKVCache(ctx, config.NATS)
	case CacheTypeNone:
		return NoOpCache{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrUnsupportedCache, config.Type)
	}
}
