package kubeclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// DefaultBatchConcurrency bounds the operations a BatchExecutor runs at once.
const DefaultBatchConcurrency = 5

// Batch operation types.
const (
	OperationGet    = "get"
	OperationList   = "list"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationPatch  = "patch"
	OperationDelete = "delete"
)

// Static errors for batch execution.
var (
	ErrUnsupportedOperationType = errors.New("unsupported operation type")
	ErrMissingObject            = errors.New("operation requires an object")
)

// ResourceClient is the set of operations a BatchExecutor dispatches to.
// *Resources implements it.
type ResourceClient interface {
	Lister
	Get(ctx context.Context, ref ResourceRef) (*unstructured.Unstructured, error)
	Create(ctx context.Context, ref ResourceRef, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Update(ctx context.Context, ref ResourceRef, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Patch(ctx context.Context, ref ResourceRef, patch map[string]any) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, ref ResourceRef) error
}

// BatchOperation represents a single operation in a batch.
type BatchOperation struct {
	ID   string
	Type string // one of the Operation* constants
	Ref  ResourceRef
	// Object is the body of create and update operations.
	Object *unstructured.Unstructured
	// Patch is the merge patch of patch operations.
	Patch    map[string]any
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Object   *unstructured.Unstructured
	List     *unstructured.UnstructuredList
	Error    error
	Duration time.Duration
}

// BatchExecutor runs resource operations concurrently.
type BatchExecutor struct {
	client      ResourceClient
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client ResourceClient, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations. Results are returned in the order of
// operations; the error combines every failed operation.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func() {
			defer waitGroup.Done()

			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}()
	}

	waitGroup.Wait()

	var err error

	for _, result := range results {
		if result.Error != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", result.ID, result.Error))
		}
	}

	return results, err
}

func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{ID: operation.ID}

	switch operation.Type {
	case OperationGet:
		result.Object, result.Error = b.client.Get(ctx, operation.Ref)
	case OperationList:
		result.List, result.Error = b.client.List(ctx, operation.Ref)
	case OperationCreate, OperationUpdate:
		if operation.Object == nil {
			result.Error = fmt.Errorf("%w: %s", ErrMissingObject, operation.Type)

			break
		}

		if operation.Type == OperationCreate {
			result.Object, result.Error = b.client.Create(ctx, operation.Ref, operation.Object)
		} else {
			result.Object, result.Error = b.client.Update(ctx, operation.Ref, operation.Object)
		}
	case OperationPatch:
		result.Object, result.Error = b.client.Patch(ctx, operation.Ref, operation.Patch)
	case OperationDelete:
		result.Error = b.client.Delete(ctx, operation.Ref)
	default:
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedOperationType, operation.Type)
	}

	result.Success = result.Error == nil

	return result
}
