package kube

import (
	"fmt"
	"maps"
	"mime"
	"reflect"
	"slices"
	"strings"
)

// FormatterContext describes the data a formatter is asked to handle.
type FormatterContext struct {
	// MediaType is the desired (or received) media type. Empty means any.
	MediaType string

	// DataType is the Go type being written, or the target type being read.
	DataType reflect.Type
}

// Formatter serializes request bodies and deserializes response bodies for a
// family of media types.
type Formatter interface {
	// MediaTypes lists the supported media types; the first one is used when
	// the caller does not ask for a specific type.
	MediaTypes() []string

	// Suffix is the structured syntax suffix handled by the formatter
	// ("json" for application/merge-patch+json), or "".
	Suffix() string

	// CanFormat reports whether values of ctx.DataType are supported.
	CanFormat(ctx FormatterContext) bool

	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, target any) error
}

// Match scores used when choosing between formatters.
const (
	matchNone = iota
	matchAny
	matchSuffix
	matchExact
)

// FormatterSet is an immutable, ordered set of formatters keyed by name.
type FormatterSet struct {
	names      []string
	formatters map[string]Formatter
}

// NewFormatterSet returns an empty set.
func NewFormatterSet() FormatterSet {
	return FormatterSet{}
}

// With returns a copy of the set with formatter registered as name. An
// existing registration for name keeps its position.
func (s FormatterSet) With(name string, formatter Formatter) FormatterSet {
	next := FormatterSet{
		names:      s.names,
		formatters: maps.Clone(s.formatters),
	}

	if next.formatters == nil {
		next.formatters = make(map[string]Formatter, 1)
	}

	if _, exists := next.formatters[name]; !exists {
		next.names = append(slices.Clip(s.names), name)
	}

	next.formatters[name] = formatter

	return next
}

// Without returns a copy of the set with name removed.
func (s FormatterSet) Without(name string) FormatterSet {
	if _, exists := s.formatters[name]; !exists {
		return s
	}

	next := FormatterSet{
		names:      slices.DeleteFunc(slices.Clone(s.names), func(n string) bool { return n == name }),
		formatters: maps.Clone(s.formatters),
	}
	delete(next.formatters, name)

	return next
}

// Names returns the registered names in registration order.
func (s FormatterSet) Names() []string {
	return slices.Clone(s.names)
}

// Len returns the number of registered formatters.
func (s FormatterSet) Len() int {
	return len(s.names)
}

// Get returns the formatter registered as name.
func (s FormatterSet) Get(name string) (Formatter, bool) {
	formatter, ok := s.formatters[name]

	return formatter, ok
}

// Select returns the best formatter for ctx together with the concrete media
// type to use. An exact media type match beats a structured suffix match,
// which beats an unspecified media type; ties go to the earliest registration.
func (s FormatterSet) Select(ctx FormatterContext) (Formatter, string, error) {
	requested := NormalizeMediaType(ctx.MediaType)

	var (
		best          Formatter
		bestMediaType string
	)

	bestScore := matchNone

	for _, name := range s.names {
		formatter := s.formatters[name]
		if formatter == nil || !formatter.CanFormat(ctx) {
			continue
		}

		score, mediaType := matchMediaType(requested, formatter)
		if score > bestScore {
			best, bestMediaType, bestScore = formatter, mediaType, score
		}
	}

	if best == nil {
		return nil, "", fmt.Errorf("%w: media type %q, data type %v", ErrNoFormatterAvailable, ctx.MediaType, ctx.DataType)
	}

	return best, bestMediaType, nil
}

// matchMediaType scores how well formatter handles the normalized media type
// requested, and returns the media type that should be sent on the wire.
func matchMediaType(requested string, formatter Formatter) (int, string) {
	supported := formatter.MediaTypes()
	if len(supported) == 0 {
		return matchNone, ""
	}

	if requested == "" || requested == "*/*" {
		return matchAny, supported[0]
	}

	for _, mediaType := range supported {
		if NormalizeMediaType(mediaType) == requested {
			return matchExact, requested
		}
	}

	if suffix := formatter.Suffix(); suffix != "" && strings.HasSuffix(requested, "+"+suffix) {
		return matchSuffix, requested
	}

	return matchNone, ""
}

// NormalizeMediaType lower-cases mediaType and strips any parameters.
// Values that cannot be parsed are returned trimmed and lower-cased.
func NormalizeMediaType(mediaType string) string {
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return ""
	}

	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		before, _, _ := strings.Cut(mediaType, ";")

		return strings.ToLower(strings.TrimSpace(before))
	}

	return parsed
}
