package interceptors

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// LoggingRole is the role of the Logging interceptor.
const LoggingRole = "logging"

// sensitiveParams are redacted from logged URLs. Matching is
// case-insensitive and by substring.
var sensitiveParams = []string{
	"token",
	"password",
	"secret",
	"key",
	"credential",
	"auth",
}

type loggingInterceptor struct {
	kube.Delegate

	logger kube.Logger
}

// Logging returns a factory for an interceptor that logs every request with
// its outcome and duration.
func Logging(logger kube.Logger) kube.InterceptorFactory {
	if logger == nil {
		logger = kube.NopLogger{}
	}

	return func() (kube.Interceptor, error) {
		return &loggingInterceptor{logger: logger}, nil
	}
}

func (i *loggingInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := i.RoundTripNext(req)

	fields := map[string]interface{}{
		"method":      req.Method,
		"url":         sanitizeURL(req.URL),
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if id := req.Header.Get(constants.HeaderRequestID); id != "" {
		fields["request_id"] = id
	}

	switch {
	case err != nil:
		fields["error"] = err.Error()
		i.logger.Error("API request failed", fields)
	case resp.StatusCode >= http.StatusBadRequest:
		fields["status_code"] = resp.StatusCode
		i.logger.Warn("API response error", fields)
	default:
		fields["status_code"] = resp.StatusCode
		i.logger.Debug("API response", fields)
	}

	return resp, err
}

// sanitizeURL renders u with sensitive query parameters redacted.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	query := u.Query()
	redacted := false

	for param := range query {
		if isSensitiveParam(param) {
			query.Set(param, "[REDACTED]")

			redacted = true
		}
	}

	safe := *u
	safe.User = nil

	if redacted {
		safe.RawQuery = query.Encode()
	}

	return safe.String()
}

func isSensitiveParam(param string) bool {
	lower := strings.ToLower(param)

	for _, sensitive := range sensitiveParams {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}

	return false
}
