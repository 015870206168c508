package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ProxiedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_proxied_requests_total",
			Help: "Proxied requests by target service and outcome",
		},
		[]string{"service", "outcome"},
	)

	ProxyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_proxy_duration_seconds",
			Help:    "End-to-end proxied request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	RenewalAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_renewal_attempts_total",
			Help: "Watchdog renewal heartbeats issued",
		},
	)

	AuthRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_auth_rejections_total",
			Help: "Requests rejected by the authorization chain, by error code",
		},
		[]string{"code"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(
		ProxiedRequests,
		ProxyDuration,
		RenewalAttempts,
		AuthRejections,
	)
}
