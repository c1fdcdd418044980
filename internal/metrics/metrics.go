// Package metrics instruments HemoStat's agents with Prometheus
// counters/histograms. It intentionally does not serve an HTTP endpoint
// for scraping — spec §1 places "the metrics-scrape exporter" out of
// scope as an external collaborator. Whatever embeds these agents is free
// to expose prometheus.DefaultGatherer itself.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hemostat_samples_total",
		Help: "Total number of container samples taken by Monitor.",
	})
	AnomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hemostat_anomalies_total",
		Help: "Total anomalies detected by type and severity.",
	}, []string{"type", "severity"})
	HealthAlertsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hemostat_health_alerts_published_total",
		Help: "Total health_alert messages published by Monitor.",
	})
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hemostat_decisions_total",
		Help: "Analyzer decisions by verdict and method.",
	}, []string{"verdict", "method"})
	ModelFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hemostat_model_fallbacks_total",
		Help: "Total times the Analyzer fell back from model to rule classification.",
	})
	RemediationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hemostat_remediations_total",
		Help: "Remediation outcomes by action and result.",
	}, []string{"action", "result"})
	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hemostat_rejections_total",
		Help: "Rejected remediation requests by reason.",
	}, []string{"reason"})
	ActionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hemostat_action_duration_seconds",
		Help:    "Duration of Responder actuation calls.",
		Buckets: prometheus.DefBuckets,
	})
	CircuitOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hemostat_circuit_open_total",
		Help: "Total times the circuit breaker rejected a remediation.",
	})
	NotificationsDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hemostat_notifications_deduped_total",
		Help: "Total notifications suppressed by the Alert agent's dedup window.",
	})
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hemostat_notifications_sent_total",
		Help: "Total notifications delivered by channel and outcome.",
	}, []string{"channel", "outcome"})
)
