package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"go.uber.org/multierr"
)

// Client dispatches requests through an assembled interceptor pipeline.
// Create one with ClientBuilder.CreateClient.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	handlers     []Interceptor
	terminus     http.RoundTripper
	ownsTerminus bool
	logger       Logger
	closeOnce    sync.Once
	closeErr     error
}

func newClient(baseURL *url.URL, head http.RoundTripper, handlers []Interceptor, terminus http.RoundTripper, ownsTerminus bool, logger Logger) *Client {
	var base *url.URL

	if baseURL != nil {
		u := *baseURL
		base = &u
	}

	return &Client{
		baseURL:      base,
		httpClient:   &http.Client{Transport: head},
		handlers:     handlers,
		terminus:     terminus,
		ownsTerminus: ownsTerminus,
		logger:       loggerOrNop(logger),
	}
}

// BaseURL returns a copy of the client's base URL, or nil.
func (c *Client) BaseURL() *url.URL {
	if c.baseURL == nil {
		return nil
	}

	u := *c.baseURL

	return &u
}

// HTTPClient returns an *http.Client whose transport is the pipeline head.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Handlers returns the interceptors in pipeline order.
func (c *Client) Handlers() []Interceptor {
	return slices.Clone(c.handlers)
}

// Do sends req through the pipeline.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// Close releases the interceptors and the terminus. It is safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		defer func() {
			if c.closeErr != nil {
				c.logger.Warn("Failed to close client", map[string]interface{}{
					"error": c.closeErr.Error(),
				})
			}
		}()

		for index := len(c.handlers) - 1; index >= 0; index-- {
			if closer, ok := c.handlers[index].(io.Closer); ok {
				c.closeErr = multierr.Append(c.closeErr, closer.Close())
			}
		}

		if !c.ownsTerminus {
			return
		}

		switch terminus := c.terminus.(type) {
		case io.Closer:
			c.closeErr = multierr.Append(c.closeErr, terminus.Close())
		case interface{ CloseIdleConnections() }:
			terminus.CloseIdleConnections()
		}
	})

	return c.closeErr
}

// Send builds a message from request and value, dispatches it through the
// client pipeline and runs the request's response actions.
//
// When only the response actions fail, the response is returned together
// with the *AggregatedResponseActionError so callers can still inspect it.
func Send[C any](ctx context.Context, client *Client, request *Request[C], method string, value C, body any) (*http.Response, error) {
	req, err := request.BuildMessage(ctx, method, value, body, client.BaseURL())
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if err := request.ApplyResponseActions(resp, value); err != nil {
		return resp, err
	}

	return resp, nil
}

// Get sends a GET request.
func Get[C any](ctx context.Context, client *Client, request *Request[C], value C) (*http.Response, error) {
	return Send(ctx, client, request, http.MethodGet, value, nil)
}

// Post sends a POST request with body.
func Post[C any](ctx context.Context, client *Client, request *Request[C], value C, body any) (*http.Response, error) {
	return Send(ctx, client, request, http.MethodPost, value, body)
}

// Put sends a PUT request with body.
func Put[C any](ctx context.Context, client *Client, request *Request[C], value C, body any) (*http.Response, error) {
	return Send(ctx, client, request, http.MethodPut, value, body)
}

// Patch sends a PATCH request with body.
func Patch[C any](ctx context.Context, client *Client, request *Request[C], value C, body any) (*http.Response, error) {
	return Send(ctx, client, request, http.MethodPatch, value, body)
}

// Delete sends a DELETE request.
func Delete[C any](ctx context.Context, client *Client, request *Request[C], value C) (*http.Response, error) {
	return Send(ctx, client, request, http.MethodDelete, value, nil)
}

// SendAs is like Send but decodes the response body into a T. The body is
// always closed.
func SendAs[T, C any](ctx context.Context, client *Client, request *Request[C], method string, value C, body any) (T, *http.Response, error) {
	var result T

	resp, err := Send(ctx, client, request, method, value, body)
	if resp == nil {
		return result, nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	if err != nil {
		return result, resp, err
	}

	if err := request.ReadResponse(resp, &result); err != nil {
		return result, resp, err
	}

	return result, resp, nil
}
