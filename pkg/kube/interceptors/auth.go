package interceptors

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// AuthRole is the role of the BearerToken interceptor.
const AuthRole = "auth"

// TokenProvider supplies bearer tokens.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
}

type bearerTokenInterceptor struct {
	kube.Delegate

	provider TokenProvider
}

// BearerToken returns a factory for an interceptor that authenticates every
// request with a token from provider. A 401 response triggers one refresh
// and retry, provided the request body can be replayed.
func BearerToken(provider TokenProvider) kube.InterceptorFactory {
	return func() (kube.Interceptor, error) {
		if provider == nil {
			return nil, constants.ErrNoTokenManager
		}

		return &bearerTokenInterceptor{provider: provider}, nil
	}
}

func (i *bearerTokenInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := i.provider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authentication token: %w", err)
	}

	resp, err := i.RoundTripNext(authorize(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || !replayable(req) {
		return resp, err
	}

	if refreshErr := i.provider.RefreshToken(ctx); refreshErr != nil {
		return resp, nil //nolint:nilerr // the original 401 is the more useful result
	}

	token, err = i.provider.GetToken(ctx)
	if err != nil {
		return resp, nil //nolint:nilerr // same as above
	}

	retry := authorize(req, token)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return resp, nil //nolint:nilerr // same as above
		}

		retry.Body = body
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	return i.RoundTripNext(retry)
}

func authorize(req *http.Request, token string) *http.Request {
	clone := req.Clone(req.Context())
	clone.Header.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)

	return clone
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}
