package observability

import (
	"context"
	"errors"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of RPC requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_rpc_duration_seconds",
			Help:    "RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sales_rpc_active_requests",
			Help: "Number of active RPC requests",
		},
		[]string{"procedure"},
	)

	// DatasetLoadsTotal counts dataset loads by outcome (loaded, cached, error)
	DatasetLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_dataset_loads_total",
			Help: "Total number of dataset loads",
		},
		[]string{"outcome"},
	)

	// DatasetRows records the size of loaded datasets
	DatasetRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sales_dataset_rows",
			Help:    "Number of records in loaded datasets",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	// DatasetCacheTotal counts cache lookups by result (hit, miss)
	DatasetCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_dataset_cache_total",
			Help: "Dataset cache lookups",
		},
		[]string{"result"},
	)

	// QueriesTotal counts answered questions by intent source and outcome
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_queries_total",
			Help: "Total number of queries",
		},
		[]string{"source", "outcome"},
	)

	// AssistantCallsTotal counts language model calls by operation and outcome
	AssistantCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sales_assistant_calls_total",
			Help: "Total number of assistant calls",
		},
		[]string{"operation", "outcome"},
	)

	// AssistantDuration tracks assistant call latency including retries
	AssistantDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sales_assistant_duration_seconds",
			Help:    "Assistant call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"operation"},
	)
)

// NewMetricsInterceptor creates an interceptor that collects Prometheus metrics
func NewMetricsInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure

			ActiveRequests.WithLabelValues(procedure).Inc()
			defer ActiveRequests.WithLabelValues(procedure).Dec()

			start := time.Now()
			defer func() {
				RequestDuration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			}()

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
				} else {
					code = "unknown"
				}
			}
			RequestsTotal.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
