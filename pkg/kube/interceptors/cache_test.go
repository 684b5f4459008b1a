package interceptors_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube/interceptors"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := interceptors.NewMemoryCache(10)
	ctx := context.Background()

	entry := &interceptors.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(time.Hour),
		ETag:      "abc123",
	}

	require.NoError(t, cache.Set(ctx, "key1", entry))

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
}

func TestMemoryCache_Misses(t *testing.T) {
	t.Parallel()

	cache := interceptors.NewMemoryCache(10)
	ctx := context.Background()

	_, err := cache.Get(ctx, "nonexistent")
	require.ErrorIs(t, err, constants.ErrCacheMiss)
	assert.Contains(t, err.Error(), "key not found")

	require.NoError(t, cache.Set(ctx, "key1", &interceptors.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err = cache.Get(ctx, "key1")
	require.ErrorIs(t, err, constants.ErrCacheMiss)
	assert.Contains(t, err.Error(), "entry expired")
	assert.Zero(t, cache.Len())
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	cache := interceptors.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Set(ctx, key, &interceptors.CacheEntry{ExpiresAt: time.Now().Add(time.Hour)}))
	}

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "b"))
	assert.False(t, cache.Has(ctx, "c"))
}

func TestMemoryCache_EvictsClosestToExpiry(t *testing.T) {
	t.Parallel()

	cache := interceptors.NewMemoryCache(2)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, cache.Set(ctx, "short", &interceptors.CacheEntry{ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, cache.Set(ctx, "long", &interceptors.CacheEntry{ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, cache.Set(ctx, "new", &interceptors.CacheEntry{ExpiresAt: now.Add(time.Hour)}))

	assert.Equal(t, 2, cache.Len())
	assert.False(t, cache.Has(ctx, "short"))
	assert.True(t, cache.Has(ctx, "long"))
	assert.True(t, cache.Has(ctx, "new"))
}

func TestNewCacheFromConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cache, err := interceptors.NewCacheFromConfig(ctx, nil)
	require.NoError(t, err)
	assert.IsType(t, &interceptors.MemoryCache{}, cache)

	cache, err = interceptors.NewCacheFromConfig(ctx, &interceptors.CacheConfig{Type: interceptors.CacheTypeNone})
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "key", &interceptors.CacheEntry{}))
	assert.False(t, cache.Has(ctx, "key"))

	_, err = interceptors.NewCacheFromConfig(ctx, &interceptors.CacheConfig{Type: interceptors.CacheTypeNATS})
	require.ErrorIs(t, err, constants.ErrNATSURLRequired)

	_, err = interceptors.NewCacheFromConfig(ctx, &interceptors.CacheConfig{Type: "redis"})
	require.ErrorIs(t, err, constants.ErrUnsupportedCache)
}

func newCountingServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)

		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", fmt.Sprintf("%q", "v1"))
		_, _ = fmt.Fprintf(w, `{"hit":%d}`, n)
	}))
	t.Cleanup(server.Close)

	return server, &hits
}

func fetch(t *testing.T, client *http.Client, target string, header http.Header) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, target, nil)
	require.NoError(t, err)

	for name, values := range header {
		req.Header[name] = values
	}

	resp, err := client.Do(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestResponseCache(t *testing.T) {
	t.Parallel()

	server, hits := newCountingServer(t)
	cache := interceptors.NewMemoryCache(10)
	client := newPipeline(t, server.URL, stage{interceptors.CacheRole, interceptors.ResponseCache(cache, time.Minute)})

	first, body := fetch(t, client, server.URL+"/api/v1/pods", nil)
	assert.JSONEq(t, `{"hit":1}`, body)
	assert.Empty(t, first.Header.Get(interceptors.CacheStatusHeader))

	second, body := fetch(t, client, server.URL+"/api/v1/pods", nil)
	assert.JSONEq(t, `{"hit":1}`, body)
	assert.Equal(t, "hit", second.Header.Get(interceptors.CacheStatusHeader))
	assert.Equal(t, "application/json", second.Header.Get("Content-Type"))
	assert.Equal(t, int32(1), hits.Load())

	_, body = fetch(t, client, server.URL+"/api/v1/pods", http.Header{"Authorization": {"Bearer other"}})
	assert.JSONEq(t, `{"hit":2}`, body)

	_, body = fetch(t, client, server.URL+"/api/v1/pods?watch=true", nil)
	assert.JSONEq(t, `{"hit":3}`, body)
	_, body = fetch(t, client, server.URL+"/api/v1/pods?watch=true", nil)
	assert.JSONEq(t, `{"hit":4}`, body)

	_, _ = fetch(t, client, server.URL+"/broken", nil)
	_, _ = fetch(t, client, server.URL+"/broken", nil)
	assert.Equal(t, int32(6), hits.Load())
}

func TestResponseCache_Expiry(t *testing.T) {
	t.Parallel()

	server, hits := newCountingServer(t)
	client := newPipeline(t, server.URL, stage{interceptors.CacheRole, interceptors.ResponseCache(interceptors.NewMemoryCache(10), 20*time.Millisecond)})

	_, _ = fetch(t, client, server.URL, nil)
	time.Sleep(40 * time.Millisecond)
	_, body := fetch(t, client, server.URL, nil)

	assert.JSONEq(t, `{"hit":2}`, body)
	assert.Equal(t, int32(2), hits.Load())
}

func TestResponseCache_RevalidatesStaleEntryWithETag(t *testing.T) {
	t.Parallel()

	var (
		hits        atomic.Int32
		conditional atomic.Int32
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)

		w.Header().Set("ETag", `"v1"`)

		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"hit":%d}`, n)
	}))
	t.Cleanup(server.Close)

	client := newPipeline(t, server.URL, stage{interceptors.CacheRole, interceptors.ResponseCache(interceptors.NewMemoryCache(10), 100*time.Millisecond)})

	_, body := fetch(t, client, server.URL+"/api/v1/pods", nil)
	assert.JSONEq(t, `{"hit":1}`, body)

	time.Sleep(150 * time.Millisecond)

	resp, body := fetch(t, client, server.URL+"/api/v1/pods", nil)
	assert.JSONEq(t, `{"hit":1}`, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "revalidated", resp.Header.Get(interceptors.CacheStatusHeader))
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), conditional.Load())

	resp, _ = fetch(t, client, server.URL+"/api/v1/pods", nil)
	assert.Equal(t, "hit", resp.Header.Get(interceptors.CacheStatusHeader))
	assert.Equal(t, int32(2), hits.Load())
}

func TestCacheEntry_Fresh(t *testing.T) {
	t.Parallel()

	now := time.Now()

	assert.True(t, (&interceptors.CacheEntry{}).Fresh(now))
	assert.True(t, (&interceptors.CacheEntry{FreshUntil: now.Add(time.Second)}).Fresh(now))
	assert.False(t, (&interceptors.CacheEntry{FreshUntil: now.Add(-time.Second)}).Fresh(now))
}

// TestNATSKVCache runs against a real JetStream server when
// KUBECLIENT_NATS_URL is set.
func TestNATSKVCache(t *testing.T) {
	natsURL := os.Getenv("KUBECLIENT_NATS_URL")
	if natsURL == "" {
		t.Skip("KUBECLIENT_NATS_URL not set")
	}

	ctx := context.Background()

	cache, err := interceptors.NewNATSKVCache(ctx, &interceptors.NATSKVConfig{
		URL:    natsURL,
		Bucket: "kubeclient-test",
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = cache.Close() })

	require.NoError(t, cache.Clear(ctx))

	key := "GET http://example/api/v1/pods application/json"
	entry := &interceptors.CacheEntry{Data: []byte("HTTP/1.1 200 OK\r\n\r\n"), ExpiresAt: time.Now().Add(time.Minute), ETag: "v1"}

	require.NoError(t, cache.Set(ctx, key, entry))
	assert.True(t, cache.Has(ctx, key))

	retrieved, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, "v1", retrieved.ETag)

	require.NoError(t, cache.Delete(ctx, key))

	_, err = cache.Get(ctx, key)
	require.ErrorIs(t, err, constants.ErrCacheMiss)

	tooLarge := &interceptors.CacheEntry{Data: make([]byte, constants.MaxCacheValueSize)}
	require.ErrorIs(t, cache.Set(ctx, key, tooLarge), constants.ErrCacheValueTooLarge)
}
