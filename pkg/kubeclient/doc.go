// Package kubeclient is a ready-made Kubernetes API client built on the kube
// request pipeline.
//
// New assembles the standard pipeline from a Config: request IDs, user agent,
// logging, optional tracing and metrics, rate limiting, an optional circuit
// breaker, bearer token authentication, retries and an optional response
// cache. Resources gives untyped CRUD access to any resource through four
// request templates covering core and grouped APIs in both scopes.
//
//	client, err := kubeclient.NewWithToken(ctx, "https://cluster.example.com", token)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	pods, err := client.Resources().List(ctx, kubeclient.ResourceRef{
//		Resource:      "pods",
//		Namespace:     "default",
//		LabelSelector: "app=web",
//	})
package kubeclient
