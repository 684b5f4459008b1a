package kubeclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tintoy/kubeclient/internal/auth"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/interceptors"
	"go.uber.org/multierr"
)

// ErrInvalidCAFile is returned when the CA bundle contains no certificates.
var ErrInvalidCAFile = errors.New("CA file contains no PEM certificates")

// Client is a Kubernetes API client assembled from the standard pipeline.
type Client struct {
	*kube.Client

	config    *Config
	resources *Resources
	cache     interceptors.Cache
}

// New creates a client from config. The pipeline order is request-id,
// user-agent, logging, tracing, metrics, rate limit, circuit breaker, auth,
// retry and cache; optional stages are left out when not configured.
func New(ctx context.Context, config *Config) (*Client, error) {
	if config == nil {
		return nil, constants.ErrConfigRequired
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := normalizeEndpoint(config.APIEndpoint)
	if err != nil {
		return nil, err
	}

	cache, err := newCache(ctx, config)
	if err != nil {
		return nil, err
	}

	builder, err := NewClientBuilder(config, createTokenManager(config), cache)
	if err != nil {
		return nil, multierr.Append(err, closeCache(cache))
	}

	client, err := builder.CreateClient(base, nil)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to create client: %w", err), closeCache(cache))
	}

	c := &Client{Client: client, config: config, cache: cache}
	c.resources = &Resources{client: c}

	return c, nil
}

// NewWithToken creates a client for endpoint authenticated with a static token.
func NewWithToken(ctx context.Context, endpoint, token string) (*Client, error) {
	config := DefaultConfig()
	config.APIEndpoint = endpoint
	config.AccessToken = token

	return New(ctx, config)
}

// Resources returns the dynamic resource client.
func (c *Client) Resources() *Resources {
	return c.resources
}

// Close releases the pipeline and the cache backend.
func (c *Client) Close() error {
	return multierr.Append(c.Client.Close(), closeCache(c.cache))
}

type stage struct {
	role    string
	factory kube.InterceptorFactory
	enabled bool
}

func pipelineStages(config *Config, logger kube.Logger, tokens auth.TokenManager, cache interceptors.Cache) []stage {
	return []stage{
		{interceptors.RequestIDRole, interceptors.RequestID(), true},
		{interceptors.UserAgentRole, interceptors.UserAgent(config.UserAgent), true},
		{interceptors.LoggingRole, interceptors.Logging(logger), true},
		{interceptors.TracingRole, interceptors.Tracing(config.TracerProvider), config.TracerProvider != nil},
		{interceptors.MetricsRole, interceptors.Metrics(config.MetricsRegisterer), config.MetricsRegisterer != nil},
		{interceptors.RateLimitRole, interceptors.RateLimit(config.QPS, config.Burst), config.QPS >= 0},
		{interceptors.CircuitBreakerRole, circuitBreaker(config), config.CircuitBreaker != nil},
		{interceptors.AuthRole, interceptors.BearerToken(tokens), tokens != nil},
		{interceptors.RetryRole, interceptors.Retry(retryConfig(config, logger)), config.RetryMax >= 0},
		{interceptors.CacheRole, interceptors.ResponseCache(cache, config.CacheTTL), cache != nil},
	}
}

// PipelineRoles returns every role the standard pipeline can contain, in
// pipeline order.
func PipelineRoles() []string {
	stages := pipelineStages(DefaultConfig(), kube.NopLogger{}, nil, nil)
	roles := make([]string, 0, len(stages))

	for _, s := range stages {
		roles = append(roles, s.role)
	}

	return roles
}

// NewClientBuilder returns the standard pipeline for config without creating
// any handler. tokens and cache may be nil.
func NewClientBuilder(config *Config, tokens auth.TokenManager, cache interceptors.Cache) (*kube.ClientBuilder, error) {
	logger := configLogger(config)
	builder := kube.NewClientBuilder().WithLogger(logger)

	for _, s := range pipelineStages(config, logger, tokens, cache) {
		if !s.enabled {
			continue
		}

		var err error

		builder, err = builder.AddHandler(s.role, s.factory)
		if err != nil {
			return nil, err
		}
	}

	if config.SkipTLSVerify || config.CAFile != "" {
		builder = builder.WithMessagePipelineTerminus(tlsTerminus(config))
	}

	return builder, nil
}

// EnabledRoles returns the roles New would install for config.
func EnabledRoles(config *Config) []string {
	var (
		tokens auth.TokenManager
		cache  interceptors.Cache
	)

	if config.needsOAuth2() || config.AccessToken != "" {
		tokens = auth.NewStaticTokenManager(config.AccessToken)
	}

	if t := config.cacheConfig().Type; t != interceptors.CacheTypeNone && t != "" {
		cache = interceptors.NoOpCache{}
	}

	var roles []string

	for _, s := range pipelineStages(config, kube.NopLogger{}, tokens, cache) {
		if s.enabled {
			roles = append(roles, s.role)
		}
	}

	return roles
}

func circuitBreaker(config *Config) kube.InterceptorFactory {
	if config.CircuitBreaker == nil {
		return interceptors.CircuitBreakerInterceptor(nil)
	}

	return interceptors.CircuitBreakerInterceptor(interceptors.NewCircuitBreaker(config.CircuitBreaker))
}

func retryConfig(config *Config, logger kube.Logger) *interceptors.RetryConfig {
	retry := interceptors.DefaultRetryConfig()
	retry.MaxRetries = config.RetryMax
	retry.Logger = logger

	if config.RetryWaitMin > 0 {
		retry.RetryDelay = config.RetryWaitMin
	}

	if config.RetryWaitMax > 0 {
		retry.MaxDelay = config.RetryWaitMax
	}

	return retry
}

func configLogger(config *Config) kube.Logger {
	if config.Logger != nil {
		return config.Logger
	}

	if config.Debug {
		return kube.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	return kube.NopLogger{}
}

// createTokenManager picks a token manager based on the configured
// credentials. It returns nil when the client is anonymous.
func createTokenManager(config *Config) auth.TokenManager {
	var manager auth.TokenManager

	switch {
	case config.needsOAuth2():
		manager = auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     config.TokenURL,
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Username:     config.Username,
			Password:     config.Password,
			RefreshToken: config.RefreshToken,
			AccessToken:  config.AccessToken,
		})
	case config.AccessToken != "":
		manager = auth.NewStaticTokenManager(config.AccessToken)
	default:
		return nil
	}

	if config.TokenPersister != nil {
		logger := configLogger(config)

		return auth.NewPersistingTokenManager(manager, config.TokenPersister, func(err error) {
			logger.Warn("Failed to persist token", map[string]interface{}{"error": err.Error()})
		})
	}

	return manager
}

func newCache(ctx context.Context, config *Config) (interceptors.Cache, error) {
	cacheConfig := config.cacheConfig()
	if cacheConfig.Type == interceptors.CacheTypeNone || cacheConfig.Type == "" {
		return nil, nil //nolint:nilnil // no cache configured
	}

	cache, err := interceptors.NewCacheFromConfig(ctx, cacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	return cache, nil
}

func closeCache(cache interceptors.Cache) error {
	if closer, ok := cache.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// normalizeEndpoint trims a trailing slash and defaults the scheme to https.
func normalizeEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API endpoint: %w", err)
	}

	return base, nil
}

func tlsTerminus(config *Config) kube.TerminusConfigurator {
	return func(current http.RoundTripper) (http.RoundTripper, error) {
		transport, ok := current.(*http.Transport)
		if !ok {
			transport = cleanhttp.DefaultPooledTransport()
		} else {
			transport = transport.Clone()
		}

		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if transport.TLSClientConfig != nil {
			tlsConfig = transport.TLSClientConfig.Clone()
		}

		if config.SkipTLSVerify {
			tlsConfig.InsecureSkipVerify = true // #nosec G402 -- explicitly requested by the caller
		}

		if config.CAFile != "" {
			pem, err := os.ReadFile(config.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA file: %w", err)
			}

			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidCAFile, config.CAFile)
			}

			tlsConfig.RootCAs = pool
		}

		transport.TLSClientConfig = tlsConfig

		return transport, nil
	}
}
