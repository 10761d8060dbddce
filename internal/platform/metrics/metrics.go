// Package metrics defines the Prometheus instruments for the platform.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters the services record into. A single instance is
// built at startup and shared.
type Metrics struct {
	PurchasesTotal *prometheus.CounterVec
	GrantsIssued   *prometheus.CounterVec
	PlaysRecorded  prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	AuthRejections prometheus.Counter
	UploadsTotal   *prometheus.CounterVec
}

// New registers all instruments against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PurchasesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "purchases_total",
			Help:      "Purchase attempts by terminal outcome.",
		}, []string{"status"}),
		GrantsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "signed_grants_issued_total",
			Help:      "Signed URLs issued by kind (stream, download).",
		}, []string{"kind"}),
		PlaysRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "plays_recorded_total",
			Help:      "Play events appended to the history.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern, and status class.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "soundvault",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "auth_rejections_total",
			Help:      "Requests rejected during credential resolution.",
		}),
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "soundvault",
			Name:      "uploads_total",
			Help:      "Stored uploads by kind (audio, cover).",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.PurchasesTotal,
		m.GrantsIssued,
		m.PlaysRecorded,
		m.HTTPRequests,
		m.HTTPDuration,
		m.AuthRejections,
		m.UploadsTotal,
	)
	return m
}

// NewNop returns a bundle registered against a throwaway registry. Tests use
// it when they do not assert on instrument values.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
