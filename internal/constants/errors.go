package constants

import "errors"

// Configuration errors.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrUnsupportedCache    = errors.New("unsupported cache type")
	ErrNATSURLRequired     = errors.New("NATS URL is required for NATS cache")
)

// Authentication errors.
var (
	ErrNoTokenURL               = errors.New("no token URL configured")
	ErrNoCredentials            = errors.New("no credentials available to obtain a token")
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrNoTokenManager           = errors.New("no token manager configured")
)

// Interceptor errors.
var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
)

// Cache errors.
var (
	ErrCacheMiss          = errors.New("cache miss")
	ErrCacheValueTooLarge = errors.New("cache value too large")
)
