// Package metrics registers the proxy's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tx_proxy"

var buckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// InboundRequests counts every accepted inbound JSON-RPC call, labeled
	// by method and outcome.
	InboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inbound_requests",
		Help:      "Total number of inbound JSON-RPC requests accepted.",
	}, []string{"method", "outcome"})

	// BuilderRequestsLatency observes per-target validator round-trip
	// latency.
	BuilderRequestsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "builder_requests_latency",
		Help:      "Validator (builder) target round-trip latency in seconds.",
		Buckets:   buckets,
	}, []string{"target"})

	// L2RequestsLatency observes per-target executor round-trip latency.
	L2RequestsLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "l2_requests_latency",
		Help:      "Executor (L2) target round-trip latency in seconds.",
		Buckets:   buckets,
	}, []string{"target"})

	// BuilderFailedRequests counts validator transport failures.
	BuilderFailedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "builder_failed_requests",
		Help:      "Total number of failed validator (builder) target calls.",
	}, []string{"target"})

	// L2FailedRequests counts executor transport failures.
	L2FailedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "l2_failed_requests",
		Help:      "Total number of failed executor (L2) target calls.",
	}, []string{"target"})
)
