// Package formatters provides the JSON and YAML body formatters used by
// kube requests.
package formatters

import (
	"reflect"

	"github.com/tintoy/kubeclient/pkg/kube"
)

// Default returns a set with JSON registered ahead of YAML, so JSON is
// chosen when no media type is requested.
func Default() kube.FormatterSet {
	return kube.NewFormatterSet().
		With(JSONName, JSON()).
		With(YAMLName, YAML())
}

func serializable(dataType reflect.Type) bool {
	if dataType == nil {
		return false
	}

	for dataType.Kind() == reflect.Pointer {
		dataType = dataType.Elem()
	}

	switch dataType.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128, reflect.Invalid:
		return false
	default:
		return true
	}
}
