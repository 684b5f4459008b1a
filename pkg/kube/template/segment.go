package template

import (
	"net/url"
)

// Segment is one atomic unit of a parsed URI template.
//
// The set of implementations is closed: RootSegment, LiteralPathSegment,
// ParameterizedPathSegment, LiteralQuerySegment and ParameterizedQuerySegment.
type Segment interface {
	// Evaluate resolves the segment against ctx. ok is false when the
	// segment contributes nothing to the built URI.
	Evaluate(ctx Context) (value string, ok bool, err error)

	// String returns the template text the segment was parsed from.
	String() string

	segment()
}

// PathSegment is a segment of the template path.
type PathSegment interface {
	Segment

	// Directory reports whether the segment is followed by a path separator.
	Directory() bool
}

// QuerySegment is a single name=value pair of the template query.
type QuerySegment interface {
	Segment

	// QueryName is the (decoded) query parameter name.
	QueryName() string
}

// RootSegment represents the leading "/" of a template.
type RootSegment struct{}

// Root is the only RootSegment value.
var Root = RootSegment{}

// Evaluate always yields the empty string.
func (RootSegment) Evaluate(Context) (string, bool, error) {
	return "", true, nil
}

// Directory is always true; the root is the separator.
func (RootSegment) Directory() bool { return true }

func (RootSegment) String() string { return "/" }

func (RootSegment) segment() {}

// LiteralPathSegment is a constant path component.
type LiteralPathSegment struct {
	Value       string
	IsDirectory bool
}

// Evaluate returns the constant value.
func (s LiteralPathSegment) Evaluate(Context) (string, bool, error) {
	return s.Value, true, nil
}

// Directory implements PathSegment.
func (s LiteralPathSegment) Directory() bool { return s.IsDirectory }

func (s LiteralPathSegment) String() string { return s.Value }

func (LiteralPathSegment) segment() {}

// ParameterizedPathSegment is a path component bound to a template parameter.
type ParameterizedPathSegment struct {
	Parameter   string
	IsOptional  bool
	IsDirectory bool
}

// Evaluate looks the parameter up in ctx. Values are path-escaped.
func (s ParameterizedPathSegment) Evaluate(ctx Context) (string, bool, error) {
	value, ok, err := lookup(ctx, s.Parameter, s.IsOptional)
	if err != nil || !ok {
		return "", false, err
	}

	return url.PathEscape(value), true, nil
}

// Directory implements PathSegment.
func (s ParameterizedPathSegment) Directory() bool { return s.IsDirectory }

func (s ParameterizedPathSegment) String() string {
	return placeholder(s.Parameter, s.IsOptional)
}

func (ParameterizedPathSegment) segment() {}

// LiteralQuerySegment is a constant query parameter. Name and Value are
// stored decoded; Raw keeps the pair exactly as written in the template.
type LiteralQuerySegment struct {
	Name  string
	Value string
	Raw   string
}

// Evaluate returns the pair as written, or the encoded name=value pair when
// the segment was not parsed from a template.
func (s LiteralQuerySegment) Evaluate(Context) (string, bool, error) {
	return s.String(), true, nil
}

// QueryName implements QuerySegment.
func (s LiteralQuerySegment) QueryName() string { return s.Name }

func (s LiteralQuerySegment) String() string {
	if s.Raw != "" {
		return s.Raw
	}

	return url.QueryEscape(s.Name) + "=" + url.QueryEscape(s.Value)
}

func (LiteralQuerySegment) segment() {}

// ParameterizedQuerySegment maps a query parameter onto a template parameter.
type ParameterizedQuerySegment struct {
	Name       string
	Parameter  string
	IsOptional bool
}

// Evaluate looks the parameter up in ctx and returns the encoded pair.
func (s ParameterizedQuerySegment) Evaluate(ctx Context) (string, bool, error) {
	value, ok, err := lookup(ctx, s.Parameter, s.IsOptional)
	if err != nil || !ok {
		return "", false, err
	}

	return url.QueryEscape(s.Name) + "=" + url.QueryEscape(value), true, nil
}

// QueryName implements QuerySegment.
func (s ParameterizedQuerySegment) QueryName() string { return s.Name }

func (s ParameterizedQuerySegment) String() string {
	return url.QueryEscape(s.Name) + "=" + placeholder(s.Parameter, s.IsOptional)
}

func (ParameterizedQuerySegment) segment() {}

func lookup(ctx Context, name string, optional bool) (string, bool, error) {
	if ctx == nil {
		if optional {
			return "", false, nil
		}

		return "", false, &MissingParameterError{Name: name}
	}

	return ctx.Get(name, optional)
}

func placeholder(name string, optional bool) string {
	if optional {
		return "{" + name + "?}"
	}

	return "{" + name + "}"
}
