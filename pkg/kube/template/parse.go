package template

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// parameterPattern matches a whole component holding a single parameter:
// {name} or {name?}.
var parameterPattern = regexp.MustCompile(`^\{(\w+)(\?)?\}$`)

// escapedOptionalMarker replaces "?}" while the query is split off.
const escapedOptionalMarker = "%3F}"

// ParseSegments parses text into its ordered segments: the root segment (if
// any), then path segments, then query segments.
func ParseSegments(text string) ([]Segment, error) {
	segments, err := parseSegments(text)
	if err != nil {
		return nil, &ParseError{Template: text, Err: err}
	}

	return segments, nil
}

func parseSegments(text string) ([]Segment, error) {
	escaped := strings.ReplaceAll(text, "?}", escapedOptionalMarker)

	if strings.Contains(escaped, "#") {
		return nil, ErrFragmentInTemplate
	}

	path, query, hasQuery := strings.Cut(escaped, "?")

	segments, err := parsePath(path)
	if err != nil {
		return nil, err
	}

	if hasQuery {
		querySegments, err := parseQuery(query)
		if err != nil {
			return nil, err
		}

		segments = append(segments, querySegments...)
	}

	return segments, nil
}

func parsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}

	components := strings.Split(path, "/")
	last := len(components) - 1
	segments := make([]Segment, 0, len(components))

	for index, component := range components {
		if component == "" {
			if index == 0 {
				segments = append(segments, Root)
			}

			continue
		}

		component = strings.ReplaceAll(component, escapedOptionalMarker, "?}")
		isDirectory := index < last

		if match := parameterPattern.FindStringSubmatch(component); match != nil {
			segments = append(segments, ParameterizedPathSegment{
				Parameter:   match[1],
				IsOptional:  match[2] == "?",
				IsDirectory: isDirectory,
			})

			continue
		}

		err := checkLiteral(component)
		if err != nil {
			return nil, err
		}

		_, err = url.PathUnescape(component)
		if err != nil {
			return nil, fmt.Errorf("path component %q: %w", component, err)
		}

		segments = append(segments, LiteralPathSegment{
			Value:       component,
			IsDirectory: isDirectory,
		})
	}

	return segments, nil
}

func parseQuery(query string) ([]Segment, error) {
	pairs := strings.Split(query, "&")
	segments := make([]Segment, 0, len(pairs))

	for _, pair := range pairs {
		rawName, rawValue, found := strings.Cut(pair, "=")
		if !found {
			// Pairs without a value are dropped, not rejected.
			continue
		}

		name, err := url.QueryUnescape(rawName)
		if err != nil {
			return nil, fmt.Errorf("query parameter name %q: %w", rawName, err)
		}

		rawValue = strings.ReplaceAll(rawValue, escapedOptionalMarker, "?}")

		if match := parameterPattern.FindStringSubmatch(rawValue); match != nil {
			segments = append(segments, ParameterizedQuerySegment{
				Name:       name,
				Parameter:  match[1],
				IsOptional: match[2] == "?",
			})

			continue
		}

		err = checkLiteral(rawValue)
		if err != nil {
			return nil, err
		}

		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("query parameter %q: %w", name, err)
		}

		segments = append(segments, LiteralQuerySegment{
			Name:  name,
			Value: value,
			Raw:   rawName + "=" + rawValue,
		})
	}

	return segments, nil
}

func checkLiteral(component string) error {
	if strings.Count(component, "{") != strings.Count(component, "}") {
		return fmt.Errorf("%w: %q", ErrUnbalancedBraces, component)
	}

	return nil
}
