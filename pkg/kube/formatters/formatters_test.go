package formatters_test

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/formatters"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func configMap() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      "settings",
			"namespace": "default",
		},
		"data": map[string]interface{}{
			"log-level": "debug",
		},
	}}
}

func notFound() *metav1.Status {
	return &metav1.Status{
		TypeMeta: metav1.TypeMeta{Kind: "Status", APIVersion: "v1"},
		Status:   metav1.StatusFailure,
		Message:  `pods "web" not found`,
		Reason:   metav1.StatusReasonNotFound,
		Code:     http.StatusNotFound,
	}
}

func TestFormatters_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		formatter kube.Formatter
		contains  []string
	}{
		{name: "json", formatter: formatters.JSON(), contains: []string{`"kind":"ConfigMap"`, `"reason":"NotFound"`}},
		{name: "indented json", formatter: &formatters.JSONFormatter{Indent: "  "}, contains: []string{`"kind": "ConfigMap"`, `"code": 404`}},
		{name: "yaml", formatter: formatters.YAML(), contains: []string{"kind: ConfigMap", "reason: NotFound", "code: 404"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			objData, err := tt.formatter.Marshal(configMap())
			require.NoError(t, err)

			statusData, err := tt.formatter.Marshal(notFound())
			require.NoError(t, err)

			output := string(objData) + string(statusData)
			for _, fragment := range tt.contains {
				assert.Contains(t, output, fragment)
			}

			assert.NotContains(t, output, "object:")
			assert.NotContains(t, output, "typemeta")

			decoded := &unstructured.Unstructured{}
			require.NoError(t, tt.formatter.Unmarshal(objData, decoded))
			assert.Equal(t, configMap().Object, decoded.Object)

			status := &metav1.Status{}
			require.NoError(t, tt.formatter.Unmarshal(statusData, status))
			assert.Equal(t, notFound(), status)
		})
	}
}

func TestYAMLFormatter_UnmarshalKubernetesObject(t *testing.T) {
	t.Parallel()

	obj := &unstructured.Unstructured{}
	require.NoError(t, formatters.YAML().Unmarshal([]byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: settings\n"), obj))

	assert.Equal(t, "ConfigMap", obj.GetKind())
	assert.Equal(t, "v1", obj.GetAPIVersion())
	assert.Equal(t, "settings", obj.GetName())

	list := &unstructured.UnstructuredList{}
	require.NoError(t, formatters.YAML().Unmarshal([]byte(
		"apiVersion: v1\nkind: PodList\nmetadata:\n  continue: next\nitems:\n- apiVersion: v1\n  kind: Pod\n  metadata:\n    name: web\n",
	), list))

	require.Len(t, list.Items, 1)
	assert.Equal(t, "web", list.Items[0].GetName())
	assert.Equal(t, "next", list.GetContinue())
}

func TestFormatters_UnmarshalErrors(t *testing.T) {
	t.Parallel()

	target := map[string]string{}

	require.Error(t, formatters.JSON().Unmarshal([]byte("{"), &target))
	require.Error(t, formatters.YAML().Unmarshal([]byte("key: [unterminated"), &target))
}

func TestFormatters_Capabilities(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "json", formatters.JSON().Suffix())
	assert.Equal(t, "yaml", formatters.YAML().Suffix())
	assert.Contains(t, formatters.JSON().MediaTypes(), "application/json")
	assert.Contains(t, formatters.JSON().MediaTypes(), "application/merge-patch+json")
	assert.Contains(t, formatters.YAML().MediaTypes(), "application/yaml")

	tests := []struct {
		name     string
		dataType reflect.Type
		expected bool
	}{
		{name: "struct pointer", dataType: reflect.TypeOf(&metav1.Status{}), expected: true},
		{name: "map", dataType: reflect.TypeOf(map[string]any{}), expected: true},
		{name: "channel", dataType: reflect.TypeOf(make(chan int)), expected: false},
		{name: "function", dataType: reflect.TypeOf(func() {}), expected: false},
		{name: "pointer to function", dataType: reflect.TypeOf(new(func())), expected: false},
		{name: "unknown", dataType: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := kube.FormatterContext{DataType: tt.dataType}

			assert.Equal(t, tt.expected, formatters.JSON().CanFormat(ctx))
			assert.Equal(t, tt.expected, formatters.YAML().CanFormat(ctx))
		})
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{formatters.JSONName, formatters.YAMLName}, formatters.Default().Names())
}
