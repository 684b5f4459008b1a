package kubeclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/template"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// DefaultVersion is used for core resources when no version is given.
const DefaultVersion = "v1"

const listQuery = "?labelSelector={labelSelector?}&fieldSelector={fieldSelector?}&limit={limit?}&continue={continue?}"

// ResourceRef identifies a resource or a collection of resources.
type ResourceRef struct {
	// Group is empty for the core API group.
	Group     string
	Version   string
	Resource  string
	Namespace string
	Name      string

	LabelSelector string
	FieldSelector string
	Limit         int64
	Continue      string
}

// Namespaced reports whether the reference is scoped to a namespace.
func (r ResourceRef) Namespaced() bool {
	return r.Namespace != ""
}

// String returns a short human readable form such as "apps/v1 deployments default/web".
func (r ResourceRef) String() string {
	gv := r.version()
	if r.Group != "" {
		gv = r.Group + "/" + gv
	}

	target := r.Name
	if r.Namespace != "" {
		target = r.Namespace + "/" + r.Name
	}

	return fmt.Sprintf("%s %s %s", gv, r.Resource, target)
}

func (r ResourceRef) version() string {
	if r.Version == "" {
		return DefaultVersion
	}

	return r.Version
}

func (r ResourceRef) limit() string {
	if r.Limit <= 0 {
		return ""
	}

	return strconv.FormatInt(r.Limit, 10)
}

func resourceRequest(uri string) *kube.Request[ResourceRef] {
	return MustRequest[ResourceRef](uri).
		WithTemplateParameterFunc("group", func(r ResourceRef) string { return r.Group }).
		WithTemplateParameterFunc("version", ResourceRef.version).
		WithTemplateParameterFunc("resource", func(r ResourceRef) string { return r.Resource }).
		WithTemplateParameterFunc("namespace", func(r ResourceRef) string { return r.Namespace }).
		WithTemplateParameterAccessor("name", template.NonEmpty(func(r ResourceRef) string { return r.Name })).
		WithTemplateParameterAccessor("labelSelector", template.NonEmpty(func(r ResourceRef) string { return r.LabelSelector })).
		WithTemplateParameterAccessor("fieldSelector", template.NonEmpty(func(r ResourceRef) string { return r.FieldSelector })).
		WithTemplateParameterAccessor("limit", template.NonEmpty(ResourceRef.limit)).
		WithTemplateParameterAccessor("continue", template.NonEmpty(func(r ResourceRef) string { return r.Continue })).
		WithResponseAction(ExpectSuccess[ResourceRef]())
}

// Request templates for the four combinations of API group and scope.
var (
	CoreNamespacedRequest    = resourceRequest("api/{version}/namespaces/{namespace}/{resource}/{name?}" + listQuery)
	CoreClusterRequest       = resourceRequest("api/{version}/{resource}/{name?}" + listQuery)
	GroupedNamespacedRequest = resourceRequest("apis/{group}/{version}/namespaces/{namespace}/{resource}/{name?}" + listQuery)
	GroupedClusterRequest    = resourceRequest("apis/{group}/{version}/{resource}/{name?}" + listQuery)
)

// RequestFor returns the request template that serves ref.
func RequestFor(ref ResourceRef) *kube.Request[ResourceRef] {
	switch {
	case ref.Group == "" && ref.Namespaced():
		return CoreNamespacedRequest
	case ref.Group == "":
		return CoreClusterRequest
	case ref.Namespaced():
		return GroupedNamespacedRequest
	default:
		return GroupedClusterRequest
	}
}

// Resources performs CRUD operations on arbitrary resources using
// unstructured objects.
type Resources struct {
	client *Client
}

// Get fetches a single resource.
func (r *Resources) Get(ctx context.Context, ref ResourceRef) (*unstructured.Unstructured, error) {
	if ref.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrResourceRefIncomplete)
	}

	return r.send(ctx, http.MethodGet, ref, nil)
}

// List fetches a collection, honouring the selectors, limit and continue
// token of ref. ref.Name is ignored.
func (r *Resources) List(ctx context.Context, ref ResourceRef) (*unstructured.UnstructuredList, error) {
	ref.Name = ""

	if err := checkRef(ref); err != nil {
		return nil, err
	}

	list, _, err := kube.SendAs[unstructured.UnstructuredList](ctx, r.client.Client, RequestFor(ref), http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}

	return &list, nil
}

// Create posts obj to the collection identified by ref.
func (r *Resources) Create(ctx context.Context, ref ResourceRef, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, OperationCreate)
	}

	ref.Name = ""

	if ref.Namespace == "" {
		ref.Namespace = obj.GetNamespace()
	}

	return r.send(ctx, http.MethodPost, ref, obj)
}

// Update replaces the resource identified by ref with obj.
func (r *Resources) Update(ctx context.Context, ref ResourceRef, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingObject, OperationUpdate)
	}

	if ref.Name == "" {
		ref.Name = obj.GetName()
	}

	if ref.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrResourceRefIncomplete)
	}

	return r.send(ctx, http.MethodPut, ref, obj)
}

// Patch applies a JSON merge patch to the resource identified by ref.
func (r *Resources) Patch(ctx context.Context, ref ResourceRef, patch map[string]any) (*unstructured.Unstructured, error) {
	if ref.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrResourceRefIncomplete)
	}

	if err := checkRef(ref); err != nil {
		return nil, err
	}

	request := RequestFor(ref).WithMediaType(constants.MediaTypeMergePatch)

	result, _, err := kube.SendAs[unstructured.Unstructured](ctx, r.client.Client, request, http.MethodPatch, ref, patch)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Delete removes the resource identified by ref.
func (r *Resources) Delete(ctx context.Context, ref ResourceRef) error {
	if ref.Name == "" {
		return fmt.Errorf("%w: name", ErrResourceRefIncomplete)
	}

	if err := checkRef(ref); err != nil {
		return err
	}

	resp, err := kube.Delete(ctx, r.client.Client, RequestFor(ref), ref)
	if resp != nil {
		_ = resp.Body.Close()
	}

	return err
}

func (r *Resources) send(ctx context.Context, method string, ref ResourceRef, body any) (*unstructured.Unstructured, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}

	result, _, err := kube.SendAs[unstructured.Unstructured](ctx, r.client.Client, RequestFor(ref), method, ref, body)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func checkRef(ref ResourceRef) error {
	if ref.Resource == "" {
		return fmt.Errorf("%w: resource", ErrResourceRefIncomplete)
	}

	return nil
}
