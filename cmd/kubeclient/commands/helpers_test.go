package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/internal/constants"
)

// withOutput sets the global output format for the duration of a test.
func withOutput(t *testing.T, format string) {
	t.Helper()

	previous := viper.GetString("output")
	viper.Set("output", format)

	t.Cleanup(func() { viper.Set("output", previous) })
}

//nolint:paralleltest // uses the global viper instance
func TestOutputFormat(t *testing.T) {
	var buf bytes.Buffer

	withOutput(t, "")

	format, err := outputFormat(&buf)
	require.NoError(t, err)
	assert.Equal(t, constants.FormatJSON, format, "non-terminal writers default to JSON")

	viper.Set("output", "YAML")

	format, err = outputFormat(&buf)
	require.NoError(t, err)
	assert.Equal(t, constants.FormatYAML, format)

	viper.Set("output", "xml")

	_, err = outputFormat(&buf)
	require.ErrorIs(t, err, ErrUnknownOutputFormat)
}

func TestParseParameters(t *testing.T) {
	t.Parallel()

	params, err := parseParameters([]string{"namespace=default", "selector=app=web", "name=", "namespace=kube-system"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"namespace": "kube-system",
		"selector":  "app=web",
		"name":      "",
	}, params)

	_, err = parseParameters([]string{"namespace"})
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = parseParameters([]string{"=value"})
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestWriteStructured(t *testing.T) {
	t.Parallel()

	var jsonBuf, yamlBuf bytes.Buffer

	value := map[string]string{"name": "web"}

	require.NoError(t, writeStructured(&jsonBuf, constants.FormatJSON, value))
	require.NoError(t, writeStructured(&yamlBuf, constants.FormatYAML, value))

	assert.JSONEq(t, `{"name":"web"}`, jsonBuf.String())
	assert.Equal(t, "name: web\n", yamlBuf.String())
}
