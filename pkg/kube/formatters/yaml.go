package formatters

import (
	"fmt"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"sigs.k8s.io/yaml"
)

// YAMLName is the name YAML formatters are registered under by default.
const YAMLName = "yaml"

// YAMLFormatter handles the YAML media types. Values go through their JSON
// encoding, so json tags and custom JSON marshalers apply.
type YAMLFormatter struct{}

// YAML returns a YAMLFormatter.
func YAML() *YAMLFormatter {
	return &YAMLFormatter{}
}

// MediaTypes implements kube.Formatter.
func (f *YAMLFormatter) MediaTypes() []string {
	return []string{
		constants.MediaTypeYAML,
		"application/x-yaml",
		"text/yaml",
	}
}

// Suffix implements kube.Formatter.
func (f *YAMLFormatter) Suffix() string {
	return "yaml"
}

// CanFormat implements kube.Formatter.
func (f *YAMLFormatter) CanFormat(ctx kube.FormatterContext) bool {
	return serializable(ctx.DataType)
}

// Marshal implements kube.Formatter.
func (f *YAMLFormatter) Marshal(value any) ([]byte, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}

	return data, nil
}

// Unmarshal implements kube.Formatter.
func (f *YAMLFormatter) Unmarshal(data []byte, target any) error {
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return nil
}
