package template_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/pkg/kube/template"
)

//nolint:funlen // Table-driven parser cases are easier to read in one place
func TestParseSegments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		expected []template.Segment
	}{
		{
			name:     "empty template",
			template: "",
			expected: nil,
		},
		{
			name:     "root only",
			template: "/",
			expected: []template.Segment{template.Root},
		},
		{
			name:     "rooted literal path",
			template: "/api/v1",
			expected: []template.Segment{
				template.Root,
				template.LiteralPathSegment{Value: "api", IsDirectory: true},
				template.LiteralPathSegment{Value: "v1", IsDirectory: false},
			},
		},
		{
			name:     "trailing separator marks last component as directory",
			template: "api/v1/",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "api", IsDirectory: true},
				template.LiteralPathSegment{Value: "v1", IsDirectory: true},
			},
		},
		{
			name:     "required and optional path parameters",
			template: "api/{group}/{kind}/{id?}",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "api", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "group", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "kind", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "id", IsOptional: true},
			},
		},
		{
			name:     "optional marker is not a query separator",
			template: "api/{group}/{kind}/{id?}?watch={w?}",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "api", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "group", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "kind", IsDirectory: true},
				template.ParameterizedPathSegment{Parameter: "id", IsOptional: true},
				template.ParameterizedQuerySegment{Name: "watch", Parameter: "w", IsOptional: true},
			},
		},
		{
			name:     "literal query values are decoded",
			template: "pods?labelSelector=app%3Dweb&limit=10",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "pods"},
				template.LiteralQuerySegment{Name: "labelSelector", Value: "app=web", Raw: "labelSelector=app%3Dweb"},
				template.LiteralQuerySegment{Name: "limit", Value: "10", Raw: "limit=10"},
			},
		},
		{
			name:     "query pair without equals sign is dropped",
			template: "pods?watch&limit={limit}",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "pods"},
				template.ParameterizedQuerySegment{Name: "limit", Parameter: "limit"},
			},
		},
		{
			name:     "partial placeholder is a literal",
			template: "prefix-{name}",
			expected: []template.Segment{
				template.LiteralPathSegment{Value: "prefix-{name}"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			segments, err := template.ParseSegments(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, segments)
		})
	}
}

func TestParseSegments_AtMostOneRoot(t *testing.T) {
	t.Parallel()

	segments, err := template.ParseSegments("/api//v1/")
	require.NoError(t, err)

	roots := 0

	for _, segment := range segments {
		if _, ok := segment.(template.RootSegment); ok {
			roots++
		}
	}

	assert.Equal(t, 1, roots)
	assert.Equal(t, template.Root, segments[0])
}

func TestParseSegments_Idempotent(t *testing.T) {
	t.Parallel()

	const text = "/apis/{group}/{version}/namespaces/{namespace}/{resource}/{name?}?watch={watch?}&limit=500"

	first, err := template.ParseSegments(text)
	require.NoError(t, err)

	second, err := template.ParseSegments(text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseSegments_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		cause    error
	}{
		{name: "unbalanced path braces", template: "api/{group", cause: template.ErrUnbalancedBraces},
		{name: "unbalanced query braces", template: "pods?watch={w", cause: template.ErrUnbalancedBraces},
		{name: "fragment", template: "pods#top", cause: template.ErrFragmentInTemplate},
		{name: "bad path escape", template: "api/%zz"},
		{name: "bad query escape", template: "pods?limit=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := template.ParseSegments(tt.template)
			require.Error(t, err)

			parseErr := &template.ParseError{}
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.template, parseErr.Template)

			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestMustParse_Panics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		template.MustParse("api/{broken")
	})
}
