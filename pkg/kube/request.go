package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube/template"
)

type queryParameter[C any] struct {
	name     string
	accessor template.Accessor[C]
}

// Request is an immutable description of an HTTP request whose URI is
// computed from a template and a per-call context value of type C.
//
// Every With method returns a modified copy; the receiver is never changed,
// so a package-level Request can be shared freely between goroutines.
type Request[C any] struct {
	uri             *template.Template
	baseURI         *url.URL
	templateParams  template.Bindings[C]
	queryParams     []queryParameter[C]
	requestActions  []RequestAction[C]
	responseActions []ResponseAction[C]
	accept          string
	mediaType       string
	formatters      FormatterSet
	properties      map[string]any
}

// NewRequest creates a request for the relative URI template uri.
func NewRequest[C any](uri string) (*Request[C], error) {
	return (&Request[C]{}).WithRelativeURI(uri)
}

// MustRequest is like NewRequest but panics if uri is not a valid template.
func MustRequest[C any](uri string) *Request[C] {
	request, err := NewRequest[C](uri)
	if err != nil {
		panic(err)
	}

	return request
}

func (r *Request[C]) clone() *Request[C] {
	c := *r

	return &c
}

// URI returns the parsed relative URI template, or nil.
func (r *Request[C]) URI() *template.Template {
	return r.uri
}

// BaseURI returns a copy of the request's own base URI, or nil.
func (r *Request[C]) BaseURI() *url.URL {
	if r.baseURI == nil {
		return nil
	}

	u := *r.baseURI

	return &u
}

// IsTemplate reports whether the URI needs a context to be evaluated.
func (r *Request[C]) IsTemplate() bool {
	return (r.uri != nil && r.uri.IsTemplate()) || len(r.queryParams) > 0
}

// MediaType returns the media type used for request bodies.
func (r *Request[C]) MediaType() string {
	return r.mediaType
}

// Accept returns the Accept header sent with the request.
func (r *Request[C]) Accept() string {
	return r.accept
}

// Formatters returns the formatters registered on the request.
func (r *Request[C]) Formatters() FormatterSet {
	return r.formatters
}

// Property returns a named property.
func (r *Request[C]) Property(name string) (any, bool) {
	value, ok := r.properties[name]

	return value, ok
}

// WithRelativeURI returns a copy of the request using the template uri.
func (r *Request[C]) WithRelativeURI(uri string) (*Request[C], error) {
	parsed, err := template.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid request URI: %w", err)
	}

	c := r.clone()
	c.uri = parsed

	return c, nil
}

// WithBaseURI returns a copy of the request bound to base. A request base
// URI takes precedence over the client's.
func (r *Request[C]) WithBaseURI(base *url.URL) *Request[C] {
	c := r.clone()

	if base == nil {
		c.baseURI = nil
	} else {
		u := *base
		c.baseURI = &u
	}

	return c
}

// WithTemplateParameter returns a copy of the request with a constant value
// for the template parameter name.
func (r *Request[C]) WithTemplateParameter(name, value string) *Request[C] {
	return r.WithTemplateParameterAccessor(name, template.Value[C](value))
}

// WithTemplateParameterFunc returns a copy of the request whose template
// parameter name is computed from the context value at build time.
func (r *Request[C]) WithTemplateParameterFunc(name string, fn func(value C) string) *Request[C] {
	return r.WithTemplateParameterAccessor(name, template.Func(fn))
}

// WithTemplateParameterAccessor is the general form of WithTemplateParameter.
func (r *Request[C]) WithTemplateParameterAccessor(name string, accessor template.Accessor[C]) *Request[C] {
	c := r.clone()
	c.templateParams = maps.Clone(r.templateParams)

	if c.templateParams == nil {
		c.templateParams = make(template.Bindings[C], 1)
	}

	c.templateParams[name] = accessor

	return c
}

// WithQueryParameter returns a copy of the request with an extra query
// parameter appended after any query in the URI template.
func (r *Request[C]) WithQueryParameter(name, value string) *Request[C] {
	return r.WithQueryParameterAccessor(name, template.Value[C](value))
}

// WithQueryParameterFunc is like WithQueryParameter, but the value is
// computed from the context value. An empty value omits the parameter.
func (r *Request[C]) WithQueryParameterFunc(name string, fn func(value C) string) *Request[C] {
	return r.WithQueryParameterAccessor(name, template.NonEmpty(fn))
}

// WithQueryParameterAccessor is the general form of WithQueryParameter.
func (r *Request[C]) WithQueryParameterAccessor(name string, accessor template.Accessor[C]) *Request[C] {
	c := r.clone()
	c.queryParams = append(slices.Clip(r.queryParams), queryParameter[C]{name: name, accessor: accessor})

	return c
}

// WithRequestAction returns a copy of the request with action appended to
// the request actions.
func (r *Request[C]) WithRequestAction(action RequestAction[C]) *Request[C] {
	c := r.clone()
	c.requestActions = append(slices.Clip(r.requestActions), action)

	return c
}

// WithResponseAction returns a copy of the request with action appended to
// the response actions.
func (r *Request[C]) WithResponseAction(action ResponseAction[C]) *Request[C] {
	c := r.clone()
	c.responseActions = append(slices.Clip(r.responseActions), action)

	return c
}

// WithHeader returns a copy of the request that sets a header.
func (r *Request[C]) WithHeader(name, value string) *Request[C] {
	return r.WithRequestAction(RequestConfig[C](func(req *http.Request) error {
		req.Header.Set(name, value)

		return nil
	}))
}

// WithAccept returns a copy of the request with the given Accept header.
func (r *Request[C]) WithAccept(mediaType string) *Request[C] {
	c := r.clone()
	c.accept = mediaType

	return c
}

// WithMediaType returns a copy of the request that sends bodies as mediaType.
func (r *Request[C]) WithMediaType(mediaType string) *Request[C] {
	c := r.clone()
	c.mediaType = mediaType

	return c
}

// WithFormatter returns a copy of the request with formatter registered
// under name.
func (r *Request[C]) WithFormatter(name string, formatter Formatter) *Request[C] {
	c := r.clone()
	c.formatters = r.formatters.With(name, formatter)

	return c
}

// WithFormatters returns a copy of the request using set.
func (r *Request[C]) WithFormatters(set FormatterSet) *Request[C] {
	c := r.clone()
	c.formatters = set

	return c
}

// WithProperty returns a copy of the request with a named property.
func (r *Request[C]) WithProperty(name string, value any) *Request[C] {
	c := r.clone()
	c.properties = maps.Clone(r.properties)

	if c.properties == nil {
		c.properties = make(map[string]any, 1)
	}

	c.properties[name] = value

	return c
}

// RequestURI evaluates the request URI for value against baseURI.
func (r *Request[C]) RequestURI(value C, baseURI *url.URL) (*url.URL, error) {
	var path, query string

	if r.uri != nil {
		var err error

		path, query, err = r.uri.Expand(template.Defer[C](value, r.templateParams))
		if err != nil {
			return nil, err
		}
	}

	queries := []string{query}

	for _, param := range r.queryParams {
		if param.accessor == nil {
			continue
		}

		if v, ok := param.accessor(value); ok {
			queries = append(queries, url.QueryEscape(param.name)+"="+url.QueryEscape(v))
		}
	}

	base := r.baseURI
	if base == nil {
		base = baseURI
	}

	if base == nil {
		return nil, ErrBaseURIRequired
	}

	return combineURI(base, path, queries...)
}

// combineURI appends the relative path to base and merges the query strings
// of both sides with "&".
func combineURI(base *url.URL, path string, queries ...string) (*url.URL, error) {
	stripped := *base
	stripped.RawQuery = ""
	stripped.ForceQuery = false
	stripped.Fragment = ""
	stripped.RawFragment = ""

	prefix := stripped.String()
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	merged := make([]string, 0, len(queries)+1)
	if base.RawQuery != "" {
		merged = append(merged, base.RawQuery)
	}

	for _, query := range queries {
		if query != "" {
			merged = append(merged, query)
		}
	}

	target := prefix + strings.TrimPrefix(path, "/")
	if len(merged) > 0 {
		target += "?" + strings.Join(merged, "&")
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to build request URI: %w", err)
	}

	return u, nil
}

// BuildMessage creates the outgoing *http.Request for one call. The request
// is bound to ctx, carries body encoded by the best matching formatter and
// has every request action applied in registration order.
func (r *Request[C]) BuildMessage(ctx context.Context, method string, value C, body any, baseURI *url.URL) (*http.Request, error) {
	u, err := r.RequestURI(value, baseURI)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.accept != "" {
		req.Header.Set(constants.HeaderAccept, r.accept)
	}

	if err := applyRequestActions(r.requestActions, req, value); err != nil {
		return nil, err
	}

	if body != nil {
		if err := r.attachBody(req, body); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (r *Request[C]) attachBody(req *http.Request, body any) error {
	formatter, mediaType, err := r.formatters.Select(FormatterContext{
		MediaType: r.mediaType,
		DataType:  reflect.TypeOf(body),
	})
	if err != nil {
		return err
	}

	data, err := formatter.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body as %s: %w", mediaType, err)
	}

	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	req.Header.Set(constants.HeaderContentType, mediaType)

	return nil
}

// ApplyResponseActions runs every response action against resp. Failures do
// not stop later actions; they are returned together as an
// *AggregatedResponseActionError.
func (r *Request[C]) ApplyResponseActions(resp *http.Response, value C) error {
	return applyResponseActions(r.responseActions, resp, value)
}

// ReadResponse decodes the body of resp into target using the formatter that
// matches the response Content-Type.
func (r *Request[C]) ReadResponse(resp *http.Response, target any) error {
	formatter, _, err := r.formatters.Select(FormatterContext{
		MediaType: resp.Header.Get(constants.HeaderContentType),
		DataType:  reflect.TypeOf(target),
	})
	if err != nil {
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := formatter.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}
