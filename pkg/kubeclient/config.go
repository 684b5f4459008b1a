package kubeclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/tintoy/kubeclient/internal/auth"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/interceptors"
	"go.opentelemetry.io/otel/trace"
)

// EnvPrefix is the prefix of environment variables read by LoadConfig.
const EnvPrefix = "KUBECLIENT"

// Config configures a Client.
type Config struct {
	// APIEndpoint is the base URL of the API server. A missing scheme
	// defaults to https.
	APIEndpoint string

	// Authentication options (provide one)
	// AccessToken is used directly as a bearer token.
	AccessToken string
	// TokenURL is the OAuth2 token endpoint of the cluster's OIDC issuer.
	TokenURL string
	// ClientID and ClientSecret select the client-credentials grant.
	ClientID     string
	ClientSecret string
	// Username and Password select the password grant.
	Username string
	Password string
	// RefreshToken renews access tokens with the refresh-token grant.
	RefreshToken string
	// TokenPersister receives refreshed tokens. Optional.
	TokenPersister auth.TokenPersister

	// RetryMax is the number of retries for transient failures. Negative
	// disables the retry stage.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// QPS and Burst configure client-side rate limiting.
	QPS   float64
	Burst int

	// CircuitBreaker enables the circuit breaker stage when non-nil.
	CircuitBreaker *interceptors.CircuitBreakerConfig

	// Cache selects the response cache backend: memory, nats or none (the
	// default).
	CacheType   string
	CacheSize   int
	CacheTTL    time.Duration
	NATSURL     string
	NATSBucket  string
	CacheConfig *interceptors.CacheConfig

	// SkipTLSVerify disables server certificate verification.
	SkipTLSVerify bool
	// CAFile is a PEM bundle used to verify the API server.
	CAFile string

	// Debug logs every request at debug level when Logger is nil.
	Debug bool
	// Logger receives pipeline logs.
	Logger kube.Logger
	// UserAgent overrides the default User-Agent header.
	UserAgent string

	// MetricsRegisterer enables the metrics stage.
	MetricsRegisterer prometheus.Registerer
	// TracerProvider enables the tracing stage.
	TracerProvider trace.TracerProvider
}

// DefaultConfig returns a configuration with the package defaults applied.
func DefaultConfig() *Config {
	return &Config{
		RetryMax:     constants.DefaultRetryMax,
		RetryWaitMin: constants.DefaultRetryWaitMin,
		RetryWaitMax: constants.DefaultRetryWaitMax,
		QPS:          constants.DefaultQPS,
		Burst:        constants.DefaultBurst,
		CacheType:    string(interceptors.CacheTypeNone),
		CacheSize:    constants.DefaultCacheSize,
		CacheTTL:     constants.DefaultCacheTTL,
		NATSBucket:   constants.DefaultNATSBucket,
		UserAgent:    constants.DefaultUserAgent,
	}
}

// NewViper returns a viper instance with the defaults registered and
// KUBECLIENT_* environment variables bound, e.g. KUBECLIENT_API or
// KUBECLIENT_CACHE_TYPE.
func NewViper() *viper.Viper {
	v := viper.New()
	ConfigureViper(v)

	return v
}

// ConfigureViper registers defaults and environment binding on v.
func ConfigureViper(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("retry_max", defaults.RetryMax)
	v.SetDefault("retry_wait_min", defaults.RetryWaitMin)
	v.SetDefault("retry_wait_max", defaults.RetryWaitMax)
	v.SetDefault("qps", defaults.QPS)
	v.SetDefault("burst", defaults.Burst)
	v.SetDefault("cache.type", defaults.CacheType)
	v.SetDefault("cache.size", defaults.CacheSize)
	v.SetDefault("cache.ttl", defaults.CacheTTL)
	v.SetDefault("cache.nats.bucket", defaults.NATSBucket)
	v.SetDefault("user_agent", defaults.UserAgent)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadConfig reads a Config from v. Keys mirror the CLI flags and config
// file: api, token, token_url, client_id, client_secret, username, password,
// refresh_token, retry_max, retry_wait_min, retry_wait_max, qps, burst,
// cache.type, cache.size, cache.ttl, cache.nats.url, cache.nats.bucket,
// skip_ssl_validation, ca_file, verbose and user_agent.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, constants.ErrConfigRequired
	}

	config := &Config{
		APIEndpoint:   v.GetString("api"),
		AccessToken:   v.GetString("token"),
		TokenURL:      v.GetString("token_url"),
		ClientID:      v.GetString("client_id"),
		ClientSecret:  v.GetString("client_secret"),
		Username:      v.GetString("username"),
		Password:      v.GetString("password"),
		RefreshToken:  v.GetString("refresh_token"),
		RetryMax:      v.GetInt("retry_max"),
		RetryWaitMin:  v.GetDuration("retry_wait_min"),
		RetryWaitMax:  v.GetDuration("retry_wait_max"),
		QPS:           v.GetFloat64("qps"),
		Burst:         v.GetInt("burst"),
		CacheType:     v.GetString("cache.type"),
		CacheSize:     v.GetInt("cache.size"),
		CacheTTL:      v.GetDuration("cache.ttl"),
		NATSURL:       v.GetString("cache.nats.url"),
		NATSBucket:    v.GetString("cache.nats.bucket"),
		SkipTLSVerify: v.GetBool("skip_ssl_validation"),
		CAFile:        v.GetString("ca_file"),
		Debug:         v.GetBool("verbose"),
		UserAgent:     v.GetString("user_agent"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if c.APIEndpoint == "" {
		return constants.ErrAPIEndpointRequired
	}

	cache := c.cacheConfig()

	switch cache.Type {
	case interceptors.CacheTypeMemory, interceptors.CacheTypeNone, "":
	case interceptors.CacheTypeNATS:
		if cache.NATS == nil || cache.NATS.URL == "" {
			return constants.ErrNATSURLRequired
		}
	default:
		return fmt.Errorf("%w: %s", constants.ErrUnsupportedCache, cache.Type)
	}

	return nil
}

func (c *Config) cacheConfig() *interceptors.CacheConfig {
	if c.CacheConfig != nil {
		return c.CacheConfig
	}

	config := &interceptors.CacheConfig{
		Type:    interceptors.CacheType(strings.ToLower(c.CacheType)),
		MaxSize: c.CacheSize,
	}

	if c.NATSURL != "" {
		config.NATS = &interceptors.NATSKVConfig{
			URL:    c.NATSURL,
			Bucket: c.NATSBucket,
			TTL:    c.CacheTTL,
		}
	}

	return config
}

func (c *Config) needsOAuth2() bool {
	return c.TokenURL != "" &&
		(c.ClientID != "" || c.Username != "" || c.RefreshToken != "")
}
