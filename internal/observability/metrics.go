package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_negotiation", Name: "commands_total", Help: "Store commands by outcome"},
		[]string{"command", "result"},
	)
	RidesPurged = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_negotiation", Name: "rides_purged_total", Help: "Rides removed by the retention sweep"})

	EventsPublished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_negotiation", Name: "events_published_total", Help: "Change events written to the broker"})
	EventsDropped   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_negotiation", Name: "events_dropped_total", Help: "Change events dropped on a full buffer or failed write"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_negotiation", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_negotiation",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
