package interceptors_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tintoy/kubeclient/pkg/kube"
	"github.com/tintoy/kubeclient/pkg/kube/interceptors"
)

func TestFactories_SharedBuilderConcurrentConstruction(t *testing.T) {
	t.Parallel()

	builder := kube.NewClientBuilder()

	for _, s := range []stage{
		{interceptors.LoggingRole, interceptors.Logging(nil)},
		{interceptors.TracingRole, interceptors.Tracing(nil)},
		{interceptors.CircuitBreakerRole, interceptors.CircuitBreakerInterceptor(nil)},
		{interceptors.CacheRole, interceptors.ResponseCache(nil, 0)},
	} {
		var err error

		builder, err = builder.AddHandler(s.role, s.factory)
		require.NoError(t, err)
	}

	const workers = 8

	var (
		wg     sync.WaitGroup
		counts [workers]int
		errs   [workers]error
	)

	for worker := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			handlers, err := builder.CreatePipelineHandlers()
			counts[worker], errs[worker] = len(handlers), err
		}()
	}

	wg.Wait()

	for worker := range workers {
		require.NoError(t, errs[worker])
		assert.Equal(t, 4, counts[worker])
	}
}
