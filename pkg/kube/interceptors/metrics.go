package interceptors

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tintoy/kubeclient/pkg/kube"
)

// MetricsRole is the role of the Metrics interceptor.
const MetricsRole = "metrics"

// ClientMetrics holds the collectors updated by the Metrics interceptor.
type ClientMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewClientMetrics creates the client collectors and registers them with
// registerer. Collectors that are already registered are reused, so several
// clients can share one registry. A nil registerer skips registration.
func NewClientMetrics(registerer prometheus.Registerer) (*ClientMetrics, error) {
	metrics := &ClientMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubeclient_requests_total",
				Help: "Total API requests by method and status code",
			},
			[]string{"method", "code"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kubeclient_request_duration_seconds",
				Help:    "API request latency by method",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kubeclient_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
		),
	}

	if registerer == nil {
		return metrics, nil
	}

	var err error

	if metrics.Requests, err = register(registerer, metrics.Requests); err != nil {
		return nil, err
	}

	if metrics.Duration, err = register(registerer, metrics.Duration); err != nil {
		return nil, err
	}

	if metrics.InFlight, err = register(registerer, metrics.InFlight); err != nil {
		return nil, err
	}

	return metrics, nil
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) (T, error) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}

	return collector, fmt.Errorf("failed to register client metrics: %w", err)
}

type metricsInterceptor struct {
	kube.Delegate

	metrics *ClientMetrics
}

// Metrics returns a factory for an interceptor that records request counts,
// latency and in-flight requests into collectors registered with registerer.
func Metrics(registerer prometheus.Registerer) kube.InterceptorFactory {
	metrics, err := NewClientMetrics(registerer)

	return func() (kube.Interceptor, error) {
		if err != nil {
			return nil, err
		}

		return &metricsInterceptor{metrics: metrics}, nil
	}
}

// MetricsWith is like Metrics but records into existing collectors.
func MetricsWith(metrics *ClientMetrics) kube.InterceptorFactory {
	return func() (kube.Interceptor, error) {
		return &metricsInterceptor{metrics: metrics}, nil
	}
}

func (i *metricsInterceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	i.metrics.InFlight.Inc()
	defer i.metrics.InFlight.Dec()

	start := time.Now()
	resp, err := i.RoundTripNext(req)

	i.metrics.Duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	code := "error"
	if err == nil {
		code = strconv.Itoa(resp.StatusCode)
	}

	i.metrics.Requests.WithLabelValues(req.Method, code).Inc()

	return resp, err
}
