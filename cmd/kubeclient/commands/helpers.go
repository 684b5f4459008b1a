package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/tintoy/kubeclient/internal/constants"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Common static errors used throughout the commands package.
var (
	ErrInvalidParameter    = errors.New("parameters must be given as name=value")
	ErrUnknownOutputFormat = errors.New("unknown output format")
)

// outputFormat returns the requested output format. Without an explicit
// --output, tables are used on a terminal and JSON everywhere else.
func outputFormat(w io.Writer) (string, error) {
	format := strings.ToLower(viper.GetString("output"))

	switch format {
	case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
		return format, nil
	case "":
		if isTerminal(w) {
			return constants.FormatTable, nil
		}

		return constants.FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOutputFormat, format)
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(file.Fd())) //nolint:gosec // file descriptors fit in int
}

// writeStructured writes value as indented JSON or YAML.
func writeStructured(w io.Writer, format string, value any) error {
	if format == constants.FormatYAML {
		encoder := yaml.NewEncoder(w)
		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	return encoder.Encode(value)
}

// parseParameters turns name=value arguments into a map. Later values win.
func parseParameters(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))

	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParameter, arg)
		}

		params[name] = value
	}

	return params, nil
}
