package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube/template"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SegmentInfo describes one parsed template segment and its value.
type SegmentInfo struct {
	Kind     string `json:"kind"            yaml:"kind"`
	Template string `json:"template"        yaml:"template"`
	Value    string `json:"value,omitempty" yaml:"value,omitempty"`
	Emitted  bool   `json:"emitted"         yaml:"emitted"`
}

// RenderResult is the outcome of rendering a template.
type RenderResult struct {
	Template   string        `json:"template"   yaml:"template"`
	Parameters []string      `json:"parameters" yaml:"parameters"`
	Segments   []SegmentInfo `json:"segments"   yaml:"segments"`
	URI        string        `json:"uri"        yaml:"uri"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "render TEMPLATE [NAME=VALUE...]",
		Short: "Evaluate a URI template",
		Long: `Parse a URI template, evaluate it against the given parameters and show
how every segment contributed to the result.

Optional parameters are written as {name?}; segments bound to an undefined
optional parameter are left out.`,
		Example: `  kubeclient render 'api/v1/namespaces/{namespace}/pods/{name?}?watch={watch?}' namespace=default`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParameters(args[1:])
			if err != nil {
				return err
			}

			result, err := renderTemplate(args[0], params)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			format, err := outputFormat(out)
			if err != nil {
				return err
			}

			if format != constants.FormatTable {
				return writeStructured(out, format, result)
			}

			return renderTable(out, result)
		},
	}
}

func renderTemplate(text string, params map[string]string) (*RenderResult, error) {
	tmpl, err := template.Parse(text)
	if err != nil {
		return nil, err
	}

	ctx := template.MapContext(params)

	uri, err := tmpl.Evaluate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate template: %w", err)
	}

	result := &RenderResult{
		Template:   tmpl.String(),
		Parameters: tmpl.Parameters(),
		URI:        uri,
	}

	for _, segment := range tmpl.Segments() {
		value, ok, err := segment.Evaluate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate segment %q: %w", segment.String(), err)
		}

		result.Segments = append(result.Segments, SegmentInfo{
			Kind:     segmentKind(segment),
			Template: segment.String(),
			Value:    value,
			Emitted:  ok,
		})
	}

	return result, nil
}

func segmentKind(segment template.Segment) string {
	var kind string

	switch segment.(type) {
	case template.RootSegment:
		kind = "root"
	case template.LiteralPathSegment:
		kind = "literal path"
	case template.ParameterizedPathSegment:
		kind = "path parameter"
	case template.LiteralQuerySegment:
		kind = "literal query"
	case template.ParameterizedQuerySegment:
		kind = "query parameter"
	}

	return cases.Title(language.English).String(kind)
}

func renderTable(out io.Writer, result *RenderResult) error {
	table := tablewriter.NewWriter(out)
	table.Header("#", "Kind", "Template", "Value", "Emitted")

	for index, segment := range result.Segments {
		value := segment.Value
		if !segment.Emitted {
			value = constants.NotAvailable
		}

		_ = table.Append(strconv.Itoa(index+1), segment.Kind, segment.Template, value, strconv.FormatBool(segment.Emitted))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	_, err := fmt.Fprintf(out, "\nURI: %s\n", result.URI)

	return err
}
