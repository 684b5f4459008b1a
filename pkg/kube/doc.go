// Package kube builds HTTP requests from URI templates and sends them through
// a composable pipeline of interceptors.
//
// A Request describes the shape of a call once, usually as a package-level
// variable, and is specialised per call through copy-on-write With methods:
//
//	var podRequest = kube.MustRequest[PodRef]("api/v1/namespaces/{namespace}/pods/{name?}").
//		WithTemplateParameterFunc("namespace", func(p PodRef) string { return p.Namespace }).
//		WithTemplateParameterFunc("name", func(p PodRef) string { return p.Name })
//
// A ClientBuilder assembles the pipeline. Each interceptor factory is
// registered under a role, which keeps roles unique and lets later
// registrations be placed relative to earlier ones:
//
//	builder, err := kube.NewClientBuilder().AddHandler("logging", loggingFactory)
//	builder, err = builder.AddHandlerBefore("auth", "logging", authFactory, false)
//	client, err := builder.CreateClient(baseURL, nil)
//
// Messages are sent with Send (or Get, Post, Put, Patch and Delete), which
// apply the request's response actions after the pipeline returns. Response
// action failures are collected into an *AggregatedResponseActionError
// instead of stopping at the first one.
package kube
