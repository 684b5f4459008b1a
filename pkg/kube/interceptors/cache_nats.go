package interceptors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/tintoy/kubeclient/internal/constants"
)

// NATSKVConfig configures the NATS KV cache.
type NATSKVConfig struct {
	// URL of the NATS server, e.g. nats://localhost:4222.
	URL string
	// Bucket name. Defaults to constants.DefaultNATSBucket.
	Bucket string
	// TTL applied by the bucket to every key. Zero keeps keys until their
	// entry expires and is overwritten.
	TTL time.Duration
	// Replicas of the bucket stream. Defaults to 1.
	Replicas int
	// Options are passed to nats.Connect.
	Options []nats.Option
}

// NATSKVCache is a Cache backed by a JetStream key-value bucket, so cached
// responses are shared between processes.
type NATSKVCache struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSKVCache connects to NATS and creates or updates the cache bucket.
// Close drains the connection.
func NewNATSKVCache(ctx context.Context, config *NATSKVConfig) (*NATSKVCache, error) {
	if config == nil || config.URL == "" {
		return nil, constants.ErrNATSURLRequired
	}

	conn, err := nats.Connect(config.URL, config.Options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	cache, err := NewNATSKVCacheFromConn(ctx, conn, config)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return cache, nil
}

// NewNATSKVCacheFromConn creates the cache bucket on an existing connection.
// The cache takes ownership of conn.
func NewNATSKVCacheFromConn(ctx context.Context, conn *nats.Conn, config *NATSKVConfig) (*NATSKVCache, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket := constants.DefaultNATSBucket
	replicas := 1

	var ttl time.Duration

	if config != nil {
		if config.Bucket != "" {
			bucket = config.Bucket
		}

		if config.Replicas > 0 {
			replicas = config.Replicas
		}

		ttl = config.TTL
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       bucket,
		Description:  "kubeclient response cache",
		MaxValueSize: constants.MaxCacheValueSize,
		History:      1,
		TTL:          ttl,
		Storage:      jetstream.MemoryStorage,
		Replicas:     replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key-value bucket %q: %w", bucket, err)
	}

	return &NATSKVCache{conn: conn, kv: kv}, nil
}

// natsKey maps an arbitrary cache key onto the KV key alphabet.
func natsKey(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}

// Get returns the entry for key.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	item, err := c.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: key not found: %s", constants.ErrCacheMiss, key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(item.Value(), &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}

	if entry.Expired() {
		return nil, fmt.Errorf("%w: entry expired: %s", constants.ErrCacheMiss, key)
	}

	return &entry, nil
}

// Set stores entry under key.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if len(data) > constants.MaxCacheValueSize {
		return fmt.Errorf("%w: %d bytes", constants.ErrCacheValueTooLarge, len(data))
	}

	if _, err := c.kv.Put(ctx, natsKey(key), data); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

// Delete removes key.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	if err := c.kv.Purge(ctx, natsKey(key)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

// Clear purges every key in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to list cache keys: %w", err)
	}

	for _, key := range keys {
		if err := c.kv.Purge(ctx, key); err != nil {
			return fmt.Errorf("failed to purge cache key: %w", err)
		}
	}

	return nil
}

// Has reports whether key holds an unexpired entry.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// Close drains the NATS connection.
func (c *NATSKVCache) Close() error {
	if c.conn == nil {
		return nil
	}

	if err := c.conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	return nil
}
