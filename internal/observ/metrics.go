package observ

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospitalops_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hospitalops_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	orgMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospitalops_org_mutations_total",
		Help: "Org tree mutations by operation and outcome.",
	}, []string{"operation", "outcome"})

	orgDependencyBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hospitalops_org_dependency_blocks_total",
		Help: "Destructive operations rejected because dependents exist, by category.",
	}, []string{"category"})

	orgCascadeSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hospitalops_org_cascade_nodes",
		Help:    "Number of nodes rewritten by a single move or rename cascade.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
	})
)

func ObserveHTTPRequest(method, route string, status int, latency time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

func RecordOrgMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	orgMutations.WithLabelValues(operation, outcome).Inc()
}

func RecordDependencyBlock(counts map[string]int) {
	for category, n := range counts {
		if n > 0 {
			orgDependencyBlocks.WithLabelValues(category).Inc()
		}
	}
}

func ObserveCascade(nodes int) {
	orgCascadeSize.Observe(float64(nodes))
}
