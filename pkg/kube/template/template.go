package template

import (
	"slices"
	"strings"
)

// Template is a parsed URI template. It is immutable and safe for
// concurrent use.
type Template struct {
	text     string
	segments []Segment
}

// Parse parses text into a Template.
func Parse(text string) (*Template, error) {
	segments, err := ParseSegments(text)
	if err != nil {
		return nil, err
	}

	return &Template{
		text:     text,
		segments: segments,
	}, nil
}

// MustParse is like Parse but panics on error. It is intended for
// package-level templates.
func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}

	return t
}

// String returns the original template text.
func (t *Template) String() string {
	return t.text
}

// Segments returns a copy of the parsed segments.
func (t *Template) Segments() []Segment {
	return slices.Clone(t.segments)
}

// IsTemplate reports whether the template has any parameterized segment.
func (t *Template) IsTemplate() bool {
	for _, segment := range t.segments {
		switch segment.(type) {
		case ParameterizedPathSegment, ParameterizedQuerySegment:
			return true
		}
	}

	return false
}

// Parameters returns the distinct parameter names in the order they appear.
func (t *Template) Parameters() []string {
	var names []string

	for _, segment := range t.segments {
		var name string

		switch s := segment.(type) {
		case ParameterizedPathSegment:
			name = s.Parameter
		case ParameterizedQuerySegment:
			name = s.Parameter
		default:
			continue
		}

		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	return names
}

// Expand evaluates the template against ctx and returns the escaped path
// and the raw query (without the leading "?").
func (t *Template) Expand(ctx Context) (string, string, error) {
	var (
		pathValues  []string
		queryValues []string
		rootEmitted bool
		lastSegment PathSegment
	)

	lastPath, lastEmitted := -1, -1

	for index, segment := range t.segments {
		value, ok, err := segment.Evaluate(ctx)
		if err != nil {
			return "", "", err
		}

		switch s := segment.(type) {
		case PathSegment:
			lastPath = index
			lastSegment = s

			if !ok {
				continue
			}

			if _, isRoot := s.(RootSegment); isRoot {
				rootEmitted = true
			}

			lastEmitted = index
			pathValues = append(pathValues, value)
		case QuerySegment:
			if ok {
				queryValues = append(queryValues, value)
			}
		}
	}

	path := strings.Join(pathValues, "/")

	switch {
	case rootEmitted && len(pathValues) == 1:
		path = "/"
	case lastEmitted >= 0 && lastEmitted == lastPath && lastSegment.Directory():
		path += "/"
	}

	return path, strings.Join(queryValues, "&"), nil
}

// Evaluate expands the template into a relative URI.
func (t *Template) Evaluate(ctx Context) (string, error) {
	path, query, err := t.Expand(ctx)
	if err != nil {
		return "", err
	}

	if query == "" {
		return path, nil
	}

	return path + "?" + query, nil
}
