package interceptors

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// CacheRole is the role of the ResponseCache interceptor.
const CacheRole = "cache"

// CacheStatusHeader is set to "hit" on responses served from the cache and
// to "revalidated" when the server confirmed a stale entry with 304.
const CacheStatusHeader = "X-Kubeclient-Cache"

type responseCacheInterceptor struct {
	kube.Delegate

	cache Cache
	ttl   time.Duration
}

// ResponseCache returns a factory for an interceptor that serves repeated GET
// requests from cache for ttl. Only 200 responses are stored. Responses with
// an ETag are kept for another ttl after going stale and are revalidated with
// If-None-Match. Watch requests are never cached.
func ResponseCache(cache Cache, ttl time.Duration) kube.InterceptorFactory {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	if cache == nil {
		cache = NoOpCache{}
	}

	return func() (kube.Interceptor, error) {
		return &responseCacheInterceptor{cache: cache, ttl: ttl}, nil
	}
}

func (i *responseCacheInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !cacheable(req) {
		return i.RoundTripNext(req)
	}

	ctx := req.Context()
	key := cacheKey(req)

	entry, err := i.cache.Get(ctx, key)
	if err != nil {
		entry = nil
	}

	if entry != nil && entry.Fresh(time.Now()) {
		if resp, readErr := readCached(entry, req); readErr == nil {
			resp.Header.Set(CacheStatusHeader, "hit")

			return resp, nil
		}

		_ = i.cache.Delete(ctx, key)
		entry = nil
	}

	outgoing := req
	if entry != nil && entry.ETag != "" && req.Header.Get("If-None-Match") == "" {
		outgoing = req.Clone(ctx)
		outgoing.Header.Set("If-None-Match", entry.ETag)
	}

	resp, err := i.RoundTripNext(outgoing)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusNotModified && outgoing != req {
		cached, readErr := readCached(entry, req)
		if readErr == nil {
			_ = resp.Body.Close()

			i.store(ctx, key, entry.Data, entry.ETag)
			cached.Header.Set(CacheStatusHeader, "revalidated")

			return cached, nil
		}
	}

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	data, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, fmt.Errorf("failed to buffer response: %w", err)
	}

	if len(data) <= constants.MaxCacheValueSize {
		i.store(ctx, key, data, resp.Header.Get("ETag"))
	}

	return resp, nil
}

func (i *responseCacheInterceptor) store(ctx context.Context, key string, data []byte, etag string) {
	now := time.Now()
	entry := &CacheEntry{
		Data:       data,
		ExpiresAt:  now.Add(i.ttl),
		FreshUntil: now.Add(i.ttl),
		ETag:       etag,
	}

	if etag != "" {
		entry.ExpiresAt = entry.FreshUntil.Add(i.ttl)
	}

	_ = i.cache.Set(ctx, key, entry)
}

func readCached(entry *CacheEntry, req *http.Request) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(entry.Data)), req)
}

func cacheable(req *http.Request) bool {
	if req.Method != http.MethodGet || req.Header.Get("Cache-Control") == "no-cache" {
		return false
	}

	watch := req.URL.Query().Get("watch")

	return watch == "" || strings.EqualFold(watch, "false") || watch == "0"
}

// cacheKey identifies a response by URL, Accept header and a digest of the
// credentials so that callers never see each other's responses.
func cacheKey(req *http.Request) string {
	sum := sha256.Sum256([]byte(req.Header.Get(constants.HeaderAuthorization)))

	return strings.Join([]string{
		req.Method,
		req.URL.String(),
		req.Header.Get(constants.HeaderAccept),
		hex.EncodeToString(sum[:8]),
	}, " ")
}
