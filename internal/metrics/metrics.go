// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the HTTP and domain collectors registered on one registry.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registrations  *prometheus.CounterVec
	claims         *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

// New registers the collectors on reg with the given name prefix.
func New(reg prometheus.Registerer, prefix string) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		registrations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		claims: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_subdomain_claims_total",
				Help: "Subdomain claim attempts by outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_webhook_events_total",
				Help: "Payment provider events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		webhookLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_webhook_duration_seconds",
				Help:    "Time spent reconciling a payment provider event",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
	}
}

// RecordRegistration counts a registration attempt.
func (m *Metrics) RecordRegistration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

// RecordClaim counts a subdomain claim attempt.
func (m *Metrics) RecordClaim(outcome string) {
	m.claims.WithLabelValues(outcome).Inc()
}

// RecordWebhookEvent counts a handled provider event and its duration.
func (m *Metrics) RecordWebhookEvent(eventType, outcome string, start time.Time) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
	m.webhookLatency.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}
