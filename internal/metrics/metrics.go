package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "csm"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route pattern, method and status."},
		[]string{"route", "method", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency by route pattern.", Buckets: prometheus.DefBuckets},
		[]string{"route", "method"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Requests rejected by a rate limiter."},
		[]string{"limiter"},
	)
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "logins_total", Help: "Login attempts by outcome."},
		[]string{"outcome"},
	)
	AlertsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "alerts_ingested_total", Help: "Alerts stored by severity."},
		[]string{"severity"},
	)
	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "emails_sent_total", Help: "Outgoing mails by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	SupportBundles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "support_bundles_total", Help: "Support bundles generated by final status."},
		[]string{"status"},
	)
	RetentionPurged = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "retention_purged_total", Help: "Records removed by the retention job."},
		[]string{"kind"},
	)
)

// RegisterCollectors registers every collector of the agent with reg
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RateLimitRejected,
		Logins,
		AlertsIngested,
		EmailsSent,
		SupportBundles,
		RetentionPurged,
	)
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Outcome labels a result as "success" or "failure"
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
