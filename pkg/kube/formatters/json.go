package formatters

import (
	"encoding/json"
	"fmt"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// JSONName is the name JSON formatters are registered under by default.
const JSONName = "json"

// JSONFormatter handles application/json and the JSON patch media types.
type JSONFormatter struct {
	// Indent, when non-empty, pretty-prints marshaled output.
	Indent string
}

// JSON returns a compact JSONFormatter.
func JSON() *JSONFormatter {
	return &JSONFormatter{}
}

// MediaTypes implements kube.Formatter.
func (f *JSONFormatter) MediaTypes() []string {
	return []string{
		constants.MediaTypeJSON,
		constants.MediaTypeMergePatch,
		constants.MediaTypeStrategicMergePatch,
		"application/json-patch+json",
	}
}

// Suffix implements kube.Formatter.
func (f *JSONFormatter) Suffix() string {
	return "json"
}

// CanFormat implements kube.Formatter.
func (f *JSONFormatter) CanFormat(ctx kube.FormatterContext) bool {
	return serializable(ctx.DataType)
}

// Marshal implements kube.Formatter.
func (f *JSONFormatter) Marshal(value any) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent != "" {
		data, err = json.MarshalIndent(value, "", f.Indent)
	} else {
		data, err = json.Marshal(value)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return data, nil
}

// Unmarshal implements kube.Formatter.
func (f *JSONFormatter) Unmarshal(data []byte, target any) error {
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
