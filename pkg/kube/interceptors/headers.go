package interceptors

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// Roles of the header interceptors.
const (
	HeadersRole   = "headers"
	UserAgentRole = "user-agent"
	RequestIDRole = "request-id"
)

type headerInterceptor struct {
	kube.Delegate

	headers   map[string]string
	overwrite bool
	generate  func() map[string]string
}

func (i *headerInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	headers := i.headers
	if i.generate != nil {
		headers = i.generate()
	}

	pending := make(map[string]string, len(headers))

	for name, value := range headers {
		if i.overwrite || req.Header.Get(name) == "" {
			pending[name] = value
		}
	}

	if len(pending) > 0 {
		req = req.Clone(req.Context())

		for name, value := range pending {
			req.Header.Set(name, value)
		}
	}

	return i.RoundTripNext(req)
}

// Headers returns a factory for an interceptor that sets fixed headers on
// every request, replacing any existing values.
func Headers(headers map[string]string) kube.InterceptorFactory {
	copied := make(map[string]string, len(headers))
	for name, value := range headers {
		copied[name] = value
	}

	return func() (kube.Interceptor, error) {
		return &headerInterceptor{headers: copied, overwrite: true}, nil
	}
}

// UserAgent returns a factory for an interceptor that sets the User-Agent
// header when the request does not already carry one.
func UserAgent(userAgent string) kube.InterceptorFactory {
	if userAgent == "" {
		userAgent = constants.DefaultUserAgent
	}

	return func() (kube.Interceptor, error) {
		return &headerInterceptor{headers: map[string]string{constants.HeaderUserAgent: userAgent}}, nil
	}
}

// RequestID returns a factory for an interceptor that tags each request with
// a random X-Request-Id unless one is already present.
func RequestID() kube.InterceptorFactory {
	return func() (kube.Interceptor, error) {
		return &headerInterceptor{
			generate: func() map[string]string {
				return map[string]string{constants.HeaderRequestID: uuid.NewString()}
			},
		}, nil
	}
}
