// Package interceptors provides the standard pipeline stages for kube
// clients. Each stage exports a Role constant and a constructor returning a
// kube.InterceptorFactory, so it can be registered on a kube.ClientBuilder:
//
//	builder, err := kube.NewClientBuilder().AddHandler(interceptors.LoggingRole, interceptors.Logging(logger))
//
// Interceptors never modify the caller's *http.Request; they clone it before
// changing headers.
package interceptors
