// Package template parses and evaluates the URI templates used to describe
// Kubernetes API requests.
//
// # Syntax
//
// A template combines a path and an optional query string. Parameters are
// written {name} (required) or {name?} (optional) and must fill a whole path
// component or a whole query value:
//
//	api/v1/namespaces/{namespace}/pods/{name?}?watch={watch?}&limit=500
//
// Query pairs without "=" are ignored.
//
// # Evaluation
//
// A Template is evaluated against a Context. MapContext looks values up in a
// map; DeferredContext computes them from a caller-supplied value using
// Accessor functions, which lets one package-level template serve every call:
//
//	type podRef struct{ Namespace, Name string }
//
//	bindings := template.Bindings[podRef]{
//		"namespace": template.Func(func(p podRef) string { return p.Namespace }),
//		"name":      template.NonEmpty(func(p podRef) string { return p.Name }),
//	}
//	uri, err := podsTemplate.Evaluate(template.Defer(podRef{Namespace: "default"}, bindings))
//
// Optional parameters without a value are left out of the result entirely.
// A missing required parameter yields a *MissingParameterError.
package template
