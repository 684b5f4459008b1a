package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as token requests.
	ShortHTTPTimeout = 10 * time.Second

	// DefaultTLSHandshakeTimeout bounds the TLS handshake of the default terminus.
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryMax is the default maximum number of retries.
	DefaultRetryMax = 5

	// LowRetryMax is used for operations that should retry fewer times.
	LowRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait time between retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait time between retries.
	DefaultRetryWaitMax = 10 * time.Second

	// ExtendedRetryWaitMax is used for operations that need longer waits.
	ExtendedRetryWaitMax = 30 * time.Second
)

// Rate limiting.
const (
	// DefaultQPS matches the client-side default of the upstream Kubernetes clients.
	DefaultQPS = 5.0

	// DefaultBurst is the default token bucket size.
	DefaultBurst = 10
)

// Authentication.
const (
	// TokenExpirationBuffer is the buffer time before token expiration.
	TokenExpirationBuffer = 30 * time.Second

	// BearerPrefix is prepended to tokens in the Authorization header.
	BearerPrefix = "Bearer "
)

// Circuit breaker defaults.
const (
	// CircuitBreakerThreshold is the failure threshold for circuit breaker.
	CircuitBreakerThreshold = 5

	// CircuitBreakerSuccessThreshold is the success threshold for circuit breaker.
	CircuitBreakerSuccessThreshold = 2

	// CircuitBreakerTimeout is the timeout for circuit breaker.
	CircuitBreakerTimeout = 30 * time.Second
)

// State and status constants.
const (
	// StatusClosed indicates a closed circuit.
	StatusClosed = "closed"

	// StatusOpen indicates an open state.
	StatusOpen = "open"

	// StatusHalfOpen indicates a half-open state.
	StatusHalfOpen = "half-open"
)

// Media types.
const (
	// MediaTypeJSON is the default media type for request and response bodies.
	MediaTypeJSON = "application/json"

	// MediaTypeYAML is the registered YAML media type.
	MediaTypeYAML = "application/yaml"

	// MediaTypeMergePatch is used for JSON merge patches.
	MediaTypeMergePatch = "application/merge-patch+json"

	// MediaTypeStrategicMergePatch is the Kubernetes strategic merge patch type.
	MediaTypeStrategicMergePatch = "application/strategic-merge-patch+json"
)

// Header names.
const (
	HeaderAccept        = "Accept"
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderRequestID     = "X-Request-Id"
	HeaderUserAgent     = "User-Agent"
)

// Cache constants.
const (
	// DefaultCacheSize is the default cache size limit.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default cache time-to-live.
	DefaultCacheTTL = 5 * time.Minute

	// MaxCacheValueSize is the maximum size for cached values (1MB).
	MaxCacheValueSize = 1024 * 1024

	// DefaultNATSBucket is the JetStream KV bucket used for cached responses.
	DefaultNATSBucket = "kubeclient-responses"
)

// Format constants.
const (
	// FormatJSON for JSON output format.
	FormatJSON = "json"

	// FormatYAML for YAML output format.
	FormatYAML = "yaml"

	// FormatTable for tabular output.
	FormatTable = "table"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2
)

// Display constants.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// TimestampFormat is used for timestamps in table output.
	TimestampFormat = "2006-01-02 15:04:05"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "kubeclient/dev"
