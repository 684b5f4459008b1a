package interceptors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tintoy/kubeclient/internal/constants"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// CircuitBreakerRole is the role of the CircuitBreakerInterceptor.
const CircuitBreakerRole = "circuit-breaker"

// CircuitBreakerConfig configures the CircuitBreaker interceptor.
type CircuitBreakerConfig struct {
	Threshold        int           // Number of failures before opening
	Timeout          time.Duration // Time before trying again
	SuccessThreshold int           // Number of successes to close
}

// DefaultCircuitBreakerConfig returns the default breaker configuration.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Threshold:        constants.CircuitBreakerThreshold,
		Timeout:          constants.CircuitBreakerTimeout,
		SuccessThreshold: constants.CircuitBreakerSuccessThreshold,
	}
}

// CircuitBreaker tracks circuit state. It is safe for concurrent use and may
// be shared by several clients talking to the same server.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	now         func() time.Time
	mu          sync.Mutex
	failures    int
	successes   int
	state       string
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed circuit breaker. A nil config uses
// DefaultCircuitBreakerConfig.
func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	return &CircuitBreaker{
		config: *config,
		now:    time.Now,
		state:  constants.StatusClosed,
	}
}

// State returns the current state: closed, open or half-open.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// allow reports whether a request may pass, moving an expired open circuit
// to half-open.
func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != constants.StatusOpen {
		return true
	}

	if b.now().Sub(b.lastFailure) > b.config.Timeout {
		b.state = constants.StatusHalfOpen
		b.successes = 0

		return true
	}

	return false
}

func (b *CircuitBreaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if failed {
		b.failures++
		b.lastFailure = b.now()

		if b.failures >= b.config.Threshold || b.state == constants.StatusHalfOpen {
			b.state = constants.StatusOpen
		}

		return
	}

	switch b.state {
	case constants.StatusHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = constants.StatusClosed
			b.failures = 0
		}
	case constants.StatusClosed:
		b.failures = 0
	}
}

type circuitBreakerInterceptor struct {
	kube.Delegate

	breaker *CircuitBreaker
}

// CircuitBreakerInterceptor returns a factory for an interceptor that fails fast with
// constants.ErrCircuitBreakerOpen while breaker is open. Transport errors and
// 5xx responses count as failures; requests cancelled by the caller are not
// recorded.
func CircuitBreakerInterceptor(breaker *CircuitBreaker) kube.InterceptorFactory {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}

	return func() (kube.Interceptor, error) {
		return &circuitBreakerInterceptor{breaker: breaker}, nil
	}
}

func (i *circuitBreakerInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	if !i.breaker.allow() {
		return nil, fmt.Errorf("%w: %s %s", constants.ErrCircuitBreakerOpen, req.Method, req.URL.Redacted())
	}

	resp, err := i.RoundTripNext(req)

	// A caller giving up says nothing about the server.
	if err != nil && (req.Context().Err() != nil || errors.Is(err, context.Canceled)) {
		return resp, err
	}

	i.breaker.record(err != nil || resp.StatusCode >= http.StatusInternalServerError)

	return resp, err
}
