// This file wires Prometheus instrumentation into the HTTP layer.
//
// Metrics() records per-request counters, latency histograms, in-flight
// gauges, and response sizes, labeled by method, route template, and status.
// Alongside the generic HTTP collectors, this file also defines the pipeline
// counters (documents indexed, chunks indexed, questions answered) that
// handlers bump on successful operations.
//
// All collectors are registered with the default Prometheus registry at init
// time; expose them via promhttp.Handler() on /metrics.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, partitioned by method, route, and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds, partitioned by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response sizes in bytes, partitioned by method and route.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"method", "route"},
	)

	documentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_indexed_total",
			Help: "Total number of documents successfully segmented and indexed.",
		},
	)

	chunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chunks_indexed_total",
			Help: "Total number of text chunks embedded and stored in the vector index.",
		},
	)

	queriesAnswered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queries_answered_total",
			Help: "Total number of questions answered through the retrieval pipeline.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize,
		documentsIndexed, chunksIndexed, queriesAnswered)
}

// Metrics instruments each request with the HTTP collectors above. The route
// label uses the Gin route template (e.g. "/documents/:id") to keep label
// cardinality bounded; unmatched routes are labeled "unmatched".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()

		c.Next()

		httpInflight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, route, status).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

// ObserveDocumentIndexed records one successfully indexed document and the
// number of chunks it produced.
func ObserveDocumentIndexed(chunks int) {
	documentsIndexed.Inc()
	if chunks > 0 {
		chunksIndexed.Add(float64(chunks))
	}
}

// ObserveQueryAnswered records one successfully answered question.
func ObserveQueryAnswered() {
	queriesAnswered.Inc()
}
