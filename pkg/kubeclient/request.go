package kubeclient

import (
	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/formatters"
)

// NewRequest creates a request template for uri that accepts JSON and can
// encode and decode both JSON and YAML bodies.
func NewRequest[C any](uri string) (*kube.Request[C], error) {
	request, err := kube.NewRequest[C](uri)
	if err != nil {
		return nil, err
	}

	return request.
		WithFormatters(formatters.Default()).
		WithAccept(constants.MediaTypeJSON), nil
}

// MustRequest is like NewRequest but panics on an invalid template. It is
// intended for package-level request definitions.
func MustRequest[C any](uri string) *kube.Request[C] {
	request, err := NewRequest[C](uri)
	if err != nil {
		panic(err)
	}

	return request
}
