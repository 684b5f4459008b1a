package kube

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/multierr"
)

// BaseRole names the interceptor abstraction itself and cannot be registered.
const BaseRole = "interceptor"

// Interceptor is a pipeline stage. It handles a request by (optionally)
// inspecting or modifying it and then delegating to the next stage.
type Interceptor interface {
	http.RoundTripper

	// SetNext links the interceptor to the stage that follows it.
	SetNext(next http.RoundTripper)
}

// InterceptorFactory creates one interceptor instance. A factory may return
// a partially constructed interceptor together with an error; it is released
// along with the rest of the pipeline.
type InterceptorFactory func() (Interceptor, error)

// TerminusConfigurator transforms the terminus produced by the previous
// configurator (nil for the first one).
type TerminusConfigurator func(current http.RoundTripper) (http.RoundTripper, error)

type registration struct {
	role    string
	factory InterceptorFactory
}

// ClientBuilder assembles an interceptor pipeline. It is immutable: every
// method returns a new builder and leaves the receiver untouched, so a base
// configuration can be shared and extended concurrently.
type ClientBuilder struct {
	handlers []registration
	terminus []TerminusConfigurator
	logger   Logger
}

// NewClientBuilder returns an empty builder that terminates in a pooled
// transport.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{logger: NopLogger{}}
}

// DefaultTerminus is the terminus used when no configurator is registered.
func DefaultTerminus(http.RoundTripper) (http.RoundTripper, error) {
	return cleanhttp.DefaultPooledTransport(), nil
}

func (b *ClientBuilder) clone() *ClientBuilder {
	c := *b

	return &c
}

// WithLogger returns a copy of the builder that logs pipeline assembly to logger.
func (b *ClientBuilder) WithLogger(logger Logger) *ClientBuilder {
	c := b.clone()
	c.logger = loggerOrNop(logger)

	return c
}

// Roles returns the registered roles in pipeline order.
func (b *ClientBuilder) Roles() []string {
	roles := make([]string, 0, len(b.handlers))
	for _, handler := range b.handlers {
		roles = append(roles, handler.role)
	}

	return roles
}

// HasRole reports whether a factory is registered for role.
func (b *ClientBuilder) HasRole(role string) bool {
	return b.indexOf(role) >= 0
}

func (b *ClientBuilder) indexOf(role string) int {
	return slices.IndexFunc(b.handlers, func(r registration) bool {
		return r.role == role
	})
}

func (b *ClientBuilder) validate(role string, factory InterceptorFactory) error {
	switch {
	case role == "" || role == BaseRole:
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	case factory == nil:
		return fmt.Errorf("%w: role %q", ErrNilFactory, role)
	case b.HasRole(role):
		return fmt.Errorf("%w: %q", ErrDuplicateRole, role)
	}

	return nil
}

// AddHandler returns a copy of the builder with factory appended under role.
func (b *ClientBuilder) AddHandler(role string, factory InterceptorFactory) (*ClientBuilder, error) {
	if err := b.validate(role, factory); err != nil {
		return nil, err
	}

	c := b.clone()
	c.handlers = append(slices.Clip(b.handlers), registration{role: role, factory: factory})

	return c, nil
}

// AddHandlerBefore returns a copy of the builder with factory inserted
// immediately before the handler registered under anchor. When anchor is not
// registered the factory is appended, or ErrAnchorNotFound is returned if
// throwIfAbsent is set.
func (b *ClientBuilder) AddHandlerBefore(role, anchor string, factory InterceptorFactory, throwIfAbsent bool) (*ClientBuilder, error) {
	return b.insert(role, anchor, factory, throwIfAbsent, 0)
}

// AddHandlerAfter is like AddHandlerBefore but inserts immediately after anchor.
func (b *ClientBuilder) AddHandlerAfter(role, anchor string, factory InterceptorFactory, throwIfAbsent bool) (*ClientBuilder, error) {
	return b.insert(role, anchor, factory, throwIfAbsent, 1)
}

func (b *ClientBuilder) insert(role, anchor string, factory InterceptorFactory, throwIfAbsent bool, offset int) (*ClientBuilder, error) {
	if err := b.validate(role, factory); err != nil {
		return nil, err
	}

	index := b.indexOf(anchor)
	if index < 0 {
		if throwIfAbsent {
			return nil, fmt.Errorf("%w: %q (inserting %q)", ErrAnchorNotFound, anchor, role)
		}

		return b.AddHandler(role, factory)
	}

	c := b.clone()
	c.handlers = slices.Insert(slices.Clone(b.handlers), index+offset, registration{role: role, factory: factory})

	return c, nil
}

// WithMessagePipelineTerminus returns a copy of the builder with configurator
// appended to the terminus chain. The first registered configurator replaces
// DefaultTerminus.
func (b *ClientBuilder) WithMessagePipelineTerminus(configurator TerminusConfigurator) *ClientBuilder {
	c := b.clone()
	c.terminus = append(slices.Clip(b.terminus), configurator)

	return c
}

// BuildPipelineTerminus folds the terminus configurators over initial.
func (b *ClientBuilder) BuildPipelineTerminus(initial http.RoundTripper) (http.RoundTripper, error) {
	configurators := b.terminus
	if len(configurators) == 0 {
		configurators = []TerminusConfigurator{DefaultTerminus}
	}

	current := initial

	for index, configure := range configurators {
		if configure == nil {
			continue
		}

		next, err := configure(current)
		if err != nil {
			return nil, fmt.Errorf("terminus configurator %d failed: %w", index, err)
		}

		current = next
	}

	if current == nil {
		return nil, ErrNullTerminus
	}

	return current, nil
}

// CreatePipelineHandlers creates one interceptor per registered factory, in
// order. If any factory fails, every interceptor created so far is released
// before the error is returned.
func (b *ClientBuilder) CreatePipelineHandlers() ([]Interceptor, error) {
	handlers := make([]Interceptor, 0, len(b.handlers))

	for _, reg := range b.handlers {
		handler, err := reg.factory()
		if handler != nil {
			handlers = append(handlers, handler)
		}

		if err == nil && handler == nil {
			err = ErrNilInterceptor
		}

		if err != nil {
			err = fmt.Errorf("failed to create %q interceptor: %w", reg.role, err)

			return nil, b.releaseHandlers(err, handlers)
		}
	}

	return handlers, nil
}

// CreateClient assembles the pipeline and returns a client bound to baseURL.
// terminusOverride, when non-nil, is used instead of the configured terminus
// and is never released by the builder.
func (b *ClientBuilder) CreateClient(baseURL *url.URL, terminusOverride http.RoundTripper) (*Client, error) {
	terminus := terminusOverride
	if terminus == nil {
		built, err := b.BuildPipelineTerminus(nil)
		if err != nil {
			return nil, err
		}

		terminus = built
	}

	handlers, err := b.CreatePipelineHandlers()
	if err != nil {
		if terminusOverride == nil {
			return nil, b.release(err, terminus)
		}

		return nil, err
	}

	var head http.RoundTripper = terminus

	for index := len(handlers) - 1; index >= 0; index-- {
		handlers[index].SetNext(head)
		head = handlers[index]
	}

	b.logger.Debug("Pipeline assembled", map[string]interface{}{
		"roles":    b.Roles(),
		"base_url": urlString(baseURL),
	})

	return newClient(baseURL, head, handlers, terminus, terminusOverride == nil, b.logger), nil
}

func (b *ClientBuilder) releaseHandlers(err error, handlers []Interceptor) error {
	items := make([]any, len(handlers))
	for index, handler := range handlers {
		items[index] = handler
	}

	return b.release(err, items...)
}

// release closes every item implementing io.Closer, newest first. Close
// failures are appended to err.
func (b *ClientBuilder) release(err error, items ...any) error {
	for index := len(items) - 1; index >= 0; index-- {
		closer, ok := items[index].(io.Closer)
		if !ok {
			continue
		}

		if closeErr := closer.Close(); closeErr != nil {
			b.logger.Warn("Failed to release pipeline component", map[string]interface{}{
				"error": closeErr.Error(),
			})

			err = multierr.Append(err, closeErr)
		}
	}

	return err
}

// Delegate holds the next pipeline stage. Interceptors embed it to satisfy
// SetNext.
type Delegate struct {
	next http.RoundTripper
}

// SetNext implements Interceptor.
func (d *Delegate) SetNext(next http.RoundTripper) {
	d.next = next
}

// Next returns the next stage.
func (d *Delegate) Next() http.RoundTripper {
	return d.next
}

// RoundTripNext forwards req to the next stage.
func (d *Delegate) RoundTripNext(req *http.Request) (*http.Response, error) {
	if d.next == nil {
		return nil, ErrNoNextHandler
	}

	return d.next.RoundTrip(req)
}

// InterceptorFunc is a stateless interceptor written as a function of the
// request and the next stage.
type InterceptorFunc func(req *http.Request, next http.RoundTripper) (*http.Response, error)

// Factory returns an InterceptorFactory producing interceptors that call fn.
func (fn InterceptorFunc) Factory() InterceptorFactory {
	return func() (Interceptor, error) {
		return &funcInterceptor{fn: fn}, nil
	}
}

type funcInterceptor struct {
	Delegate

	fn InterceptorFunc
}

func (i *funcInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if i.next == nil {
		return nil, ErrNoNextHandler
	}

	return i.fn(req, i.next)
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}

	return u.Redacted()
}
