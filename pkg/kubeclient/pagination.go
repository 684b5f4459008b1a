package kubeclient

import (
	"context"
	"errors"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// ErrNoMoreItems is returned by PaginationIterator.Next after the last item.
var ErrNoMoreItems = errors.New("no more items")

// DefaultPageSize is the list limit used by PaginationIterator when the
// reference has none.
const DefaultPageSize = 500

// Lister lists one page of a collection.
type Lister interface {
	List(ctx context.Context, ref ResourceRef) (*unstructured.UnstructuredList, error)
}

// PaginationOptions bounds FetchAllPages.
type PaginationOptions struct {
	// PageSize is the limit sent with each request.
	PageSize int64
	// MaxPages stops after this many pages. Zero means no limit.
	MaxPages int
}

// DefaultPaginationOptions returns the default pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{PageSize: DefaultPageSize}
}

// PaginationIterator walks a collection page by page using continue tokens.
type PaginationIterator struct {
	ctx    context.Context //nolint:containedctx // the iterator is bound to one listing
	lister Lister
	ref    ResourceRef

	items   []unstructured.Unstructured
	index   int
	next    string
	pages   int
	started bool
}

// NewPaginationIterator creates an iterator over the collection named by ref.
func NewPaginationIterator(ctx context.Context, lister Lister, ref ResourceRef) *PaginationIterator {
	if ref.Limit <= 0 {
		ref.Limit = DefaultPageSize
	}

	return &PaginationIterator{ctx: ctx, lister: lister, ref: ref, next: ref.Continue}
}

// HasNext reports whether another item may be available. Before the first
// page is fetched it is always true.
func (p *PaginationIterator) HasNext() bool {
	return p.index < len(p.items) || !p.started || p.next != ""
}

// Next returns the next item, fetching further pages as needed. It returns
// ErrNoMoreItems once the collection is exhausted.
func (p *PaginationIterator) Next() (*unstructured.Unstructured, error) {
	for p.index >= len(p.items) {
		if p.started && p.next == "" {
			return nil, ErrNoMoreItems
		}

		ref := p.ref
		ref.Continue = p.next

		list, err := p.lister.List(p.ctx, ref)
		if err != nil {
			return nil, err
		}

		p.started = true
		p.pages++
		p.items = list.Items
		p.index = 0
		p.next = list.GetContinue()
	}

	item := &p.items[p.index]
	p.index++

	return item, nil
}

// Pages returns the number of pages fetched so far.
func (p *PaginationIterator) Pages() int {
	return p.pages
}

// All collects every remaining item.
func (p *PaginationIterator) All() ([]unstructured.Unstructured, error) {
	var all []unstructured.Unstructured

	err := p.ForEach(func(item *unstructured.Unstructured) error {
		all = append(all, *item)

		return nil
	})

	return all, err
}

// ForEach calls fn for every remaining item and stops at the first error.
func (p *PaginationIterator) ForEach(fn func(item *unstructured.Unstructured) error) error {
	for p.HasNext() {
		item, err := p.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// FetchAllPages lists every page of ref, honouring options.MaxPages.
func FetchAllPages(ctx context.Context, lister Lister, ref ResourceRef, options *PaginationOptions) ([]unstructured.Unstructured, error) {
	if options == nil {
		options = DefaultPaginationOptions()
	}

	if options.PageSize > 0 {
		ref.Limit = options.PageSize
	}

	var all []unstructured.Unstructured

	for page := 1; ; page++ {
		list, err := lister.List(ctx, ref)
		if err != nil {
			return nil, err
		}

		all = append(all, list.Items...)
		ref.Continue = list.GetContinue()

		if ref.Continue == "" || (options.MaxPages > 0 && page >= options.MaxPages) {
			return all, nil
		}
	}
}
