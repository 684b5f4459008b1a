package template

// Context resolves template parameters to string values at build time.
type Context interface {
	// IsDefined reports whether name has a value.
	IsDefined(name string) bool

	// Get returns the value of name. When name is undefined Get returns
	// ok=false for optional parameters and a *MissingParameterError otherwise.
	Get(name string, optional bool) (value string, ok bool, err error)
}

// MapContext is a Context backed by a static map.
type MapContext map[string]string

// IsDefined implements Context.
func (m MapContext) IsDefined(name string) bool {
	_, ok := m[name]

	return ok
}

// Get implements Context.
func (m MapContext) Get(name string, optional bool) (string, bool, error) {
	if value, ok := m[name]; ok {
		return value, true, nil
	}

	return undefined(name, optional)
}

// Accessor computes a parameter value from a context value of type C.
// Returning ok=false leaves the parameter undefined.
type Accessor[C any] func(value C) (string, bool)

// Value returns an Accessor that always yields v.
func Value[C any](v string) Accessor[C] {
	return func(C) (string, bool) {
		return v, true
	}
}

// Func adapts fn into an Accessor that is always defined.
func Func[C any](fn func(C) string) Accessor[C] {
	return func(value C) (string, bool) {
		return fn(value), true
	}
}

// NonEmpty adapts fn into an Accessor that is undefined when fn returns "".
func NonEmpty[C any](fn func(C) string) Accessor[C] {
	return func(value C) (string, bool) {
		v := fn(value)

		return v, v != ""
	}
}

// Resolver resolves a named parameter against a context value.
type Resolver[C any] interface {
	Resolve(name string, value C) (string, bool)
}

// Bindings is a Resolver made of named accessors.
type Bindings[C any] map[string]Accessor[C]

// Resolve implements Resolver.
func (b Bindings[C]) Resolve(name string, value C) (string, bool) {
	accessor, ok := b[name]
	if !ok || accessor == nil {
		return "", false
	}

	return accessor(value)
}

// DeferredContext evaluates bound accessors lazily against a value of type C,
// so one template can be reused across calls that differ only in that value.
type DeferredContext[C any] struct {
	value    C
	resolver Resolver[C]
}

// Defer creates a DeferredContext over value.
func Defer[C any](value C, resolver Resolver[C]) *DeferredContext[C] {
	return &DeferredContext[C]{
		value:    value,
		resolver: resolver,
	}
}

// IsDefined implements Context.
func (d *DeferredContext[C]) IsDefined(name string) bool {
	if d.resolver == nil {
		return false
	}

	_, ok := d.resolver.Resolve(name, d.value)

	return ok
}

// Get implements Context.
func (d *DeferredContext[C]) Get(name string, optional bool) (string, bool, error) {
	if d.resolver != nil {
		if value, ok := d.resolver.Resolve(name, d.value); ok {
			return value, true, nil
		}
	}

	return undefined(name, optional)
}

// Chain is a Context that consults each context in order; the first one
// defining a name wins.
type Chain []Context

// IsDefined implements Context.
func (c Chain) IsDefined(name string) bool {
	for _, ctx := range c {
		if ctx != nil && ctx.IsDefined(name) {
			return true
		}
	}

	return false
}

// Get implements Context.
func (c Chain) Get(name string, optional bool) (string, bool, error) {
	for _, ctx := range c {
		if ctx == nil {
			continue
		}

		// Optional lookups never fail, so a miss falls through to the next context.
		value, ok, _ := ctx.Get(name, true)
		if ok {
			return value, true, nil
		}
	}

	return undefined(name, optional)
}

func undefined(name string, optional bool) (string, bool, error) {
	if optional {
		return "", false, nil
	}

	return "", false, &MissingParameterError{Name: name}
}
