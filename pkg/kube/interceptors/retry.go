package interceptors

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// RetryRole is the role of the Retry interceptor.
const RetryRole = "retry"

// RetryConfig configures the Retry interceptor.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the initial try.
	MaxRetries int
	// RetryDelay is the minimum delay between attempts.
	RetryDelay time.Duration
	// MaxDelay caps the backoff delay between attempts.
	MaxDelay time.Duration
	// RetryOnCodes lists HTTP status codes that trigger a retry.
	RetryOnCodes []int
	// RetryNonIdempotent enables retries for POST and PATCH requests.
	RetryNonIdempotent bool
	// Logger receives retry attempts. Defaults to a no-op logger.
	Logger kube.Logger
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: constants.LowRetryMax,
		RetryDelay: constants.DefaultRetryWaitMin,
		MaxDelay:   constants.ExtendedRetryWaitMax,
		RetryOnCodes: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

type retryInterceptor struct {
	kube.Delegate

	config  RetryConfig
	retrier *retryablehttp.RoundTripper
}

// Retry returns a factory for an interceptor that retries failed requests
// with exponential backoff. A nil config uses DefaultRetryConfig.
func Retry(config *RetryConfig) kube.InterceptorFactory {
	if config == nil {
		config = DefaultRetryConfig()
	}

	cfg := *config
	cfg.RetryOnCodes = slices.Clone(config.RetryOnCodes)

	return func() (kube.Interceptor, error) {
		return &retryInterceptor{config: cfg}, nil
	}
}

// SetNext links the interceptor and rebuilds the retrying client around next.
func (i *retryInterceptor) SetNext(next http.RoundTripper) {
	i.Delegate.SetNext(next)

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: next,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	client.RetryMax = i.config.MaxRetries
	client.RetryWaitMin = i.config.RetryDelay
	client.RetryWaitMax = i.config.MaxDelay
	client.CheckRetry = i.checkRetry
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = leveledLogger{logger: kube.NopLogger{}}

	if i.config.Logger != nil {
		client.Logger = leveledLogger{logger: i.config.Logger}
	}

	i.retrier = &retryablehttp.RoundTripper{Client: client}
}

func (i *retryInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if i.retrier == nil || !i.retryable(req.Method) {
		return i.RoundTripNext(req)
	}

	return i.retrier.RoundTrip(req)
}

func (i *retryInterceptor) retryable(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPatch:
		return i.config.RetryNonIdempotent
	default:
		return true
	}
}

func (i *retryInterceptor) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || ctx.Err() != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return slices.Contains(i.config.RetryOnCodes, resp.StatusCode), nil
}

// leveledLogger adapts kube.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger kube.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fields(keysAndValues))
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues))
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues))
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(keysAndValues)/2)

	for idx := 0; idx+1 < len(keysAndValues); idx += 2 {
		key, ok := keysAndValues[idx].(string)
		if !ok {
			continue
		}

		result[key] = keysAndValues[idx+1]
	}

	return result
}
