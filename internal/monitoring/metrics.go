package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticksy_client_requests_total",
			Help: "Total API requests issued by the client",
		},
		[]string{"method", "status"},
	)

	apiLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticksy_client_request_duration_seconds",
			Help:    "Latency of API requests issued by the client",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	orderPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticksy_client_order_polls_total",
			Help: "Order status fetches performed by the confirmation poller",
		},
		[]string{"result"},
	)

	stubRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticksy_stub_requests_total",
			Help: "Requests served by the stub API",
		},
		[]string{"route", "status"},
	)
)

// ObserveRequest records one API round-trip. status is 0 for transport
// failures.
func ObserveRequest(method string, status int, took time.Duration) {
	apiRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	apiLatency.WithLabelValues(method).Observe(took.Seconds())
}

func ObserveOrderPoll(result string) {
	orderPolls.WithLabelValues(result).Inc()
}

func ObserveStubRequest(route string, status int) {
	stubRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
