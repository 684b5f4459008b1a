package interceptors

import (
	"fmt"
	"net/http"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"golang.org/x/time/rate"
)

// RateLimitRole is the role of the RateLimit interceptor.
const RateLimitRole = "ratelimit"

type rateLimitInterceptor struct {
	kube.Delegate

	limiter *rate.Limiter
}

// RateLimit returns a factory for an interceptor that limits outgoing
// requests to qps with the given burst. Non-positive values fall back to the
// client defaults.
func RateLimit(qps float64, burst int) kube.InterceptorFactory {
	if qps <= 0 {
		qps = constants.DefaultQPS
	}

	if burst <= 0 {
		burst = constants.DefaultBurst
	}

	return func() (kube.Interceptor, error) {
		return &rateLimitInterceptor{limiter: rate.NewLimiter(rate.Limit(qps), burst)}, nil
	}
}

func (i *rateLimitInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := i.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	return i.RoundTripNext(req)
}
