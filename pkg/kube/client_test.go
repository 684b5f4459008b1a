package kube_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/formatters"
	"github.com/tintoy/kubeclient/pkg/kube/template"
)

type podRef struct {
	Namespace string
	Name      string
}

type pod struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

var podRequest = kube.MustRequest[podRef]("api/v1/namespaces/{namespace}/pods/{name?}").
	WithTemplateParameterFunc("namespace", func(p podRef) string { return p.Namespace }).
	WithTemplateParameterAccessor("name", template.NonEmpty(func(p podRef) string { return p.Name })).
	WithAccept("application/json").
	WithFormatters(formatters.Default())

func newPodServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")

		switch {
		case request.Method == http.MethodGet && request.URL.Path == "/api/v1/namespaces/default/pods/web":
			_ = json.NewEncoder(writer).Encode(pod{Name: "web", Namespace: "default"})
		case request.Method == http.MethodPost && request.URL.Path == "/api/v1/namespaces/default/pods":
			var created pod

			_ = json.NewDecoder(request.Body).Decode(&created)
			writer.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(writer).Encode(created)
		case request.Method == http.MethodDelete:
			writer.WriteHeader(http.StatusOK)
			_, _ = fmt.Fprint(writer, `{}`)
		default:
			writer.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(writer, `{"kind":"Status","status":"Failure","code":404}`)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestClient(t *testing.T, server *httptest.Server) *kube.Client {
	t.Helper()

	client, err := kube.NewClientBuilder().CreateClient(mustURL(t, server.URL), nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestSendAs(t *testing.T) {
	t.Parallel()

	server := newPodServer(t)
	client := newTestClient(t, server)

	result, resp, err := kube.SendAs[pod](context.Background(), client, podRequest, http.MethodGet, podRef{Namespace: "default", Name: "web"}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pod{Name: "web", Namespace: "default"}, result)
}

func TestPost(t *testing.T) {
	t.Parallel()

	server := newPodServer(t)
	client := newTestClient(t, server)

	resp, err := kube.Post(context.Background(), client, podRequest, podRef{Namespace: "default"}, pod{Name: "api"})
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created pod

	require.NoError(t, podRequest.ReadResponse(resp, &created))
	assert.Equal(t, "api", created.Name)
}

func TestSend_ResponseActionsFailKeepResponse(t *testing.T) {
	t.Parallel()

	server := newPodServer(t)
	client := newTestClient(t, server)

	errNotFound := errors.New("not found")
	logged := false

	request := podRequest.
		WithResponseAction(func(resp *http.Response, _ podRef) error {
			if resp.StatusCode == http.StatusNotFound {
				return errNotFound
			}

			return nil
		}).
		WithResponseAction(kube.ResponseConfig[podRef](func(*http.Response) error {
			logged = true

			return nil
		}))

	resp, err := kube.Get(context.Background(), client, request, podRef{Namespace: "default", Name: "missing"})
	require.Error(t, err)
	require.NotNil(t, resp)

	defer func() { _ = resp.Body.Close() }()

	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.True(t, logged)

	aggregated := &kube.AggregatedResponseActionError{}
	assert.ErrorAs(t, err, &aggregated)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	server := newPodServer(t)
	client := newTestClient(t, server)

	resp, err := kube.Delete(context.Background(), client, podRequest, podRef{Namespace: "default", Name: "web"})
	require.NoError(t, err)

	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSend_BuildErrorsSkipTransport(t *testing.T) {
	t.Parallel()

	called := false

	client, err := kube.NewClientBuilder().CreateClient(mustURL(t, "http://example.invalid/"), terminusFunc(func(req *http.Request) (*http.Response, error) {
		called = true

		return okTerminus().RoundTrip(req)
	}))
	require.NoError(t, err)

	_, err = kube.Put(context.Background(), client, podRequest.WithFormatters(kube.NewFormatterSet()), podRef{Namespace: "default"}, pod{})
	require.ErrorIs(t, err, kube.ErrNoFormatterAvailable)
	assert.False(t, called)

	resp, err := kube.Get(context.Background(), client, podRequest, podRef{Namespace: "default"})
	require.NoError(t, err)
	assert.Equal(t, "http://example.invalid/api/v1/namespaces/default/pods", resp.Request.URL.String())
	assert.True(t, called)
}

func TestSend_ContextCancelled(t *testing.T) {
	t.Parallel()

	server := newPodServer(t)
	client := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := kube.Get(ctx, client, podRequest, podRef{Namespace: "default", Name: "web"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
