package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegistered(t *testing.T) {
	// Initialise vector label combinations so they appear in Gather output.
	AnomaliesTotal.WithLabelValues("high_cpu", "critical")
	DecisionsTotal.WithLabelValues("real_issue", "rule")
	RemediationsTotal.WithLabelValues("restart", "success")
	RejectionsTotal.WithLabelValues("cooldown_active")
	NotificationsSent.WithLabelValues("webhook", "success")

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	expected := map[string]bool{
		"hemostat_samples_total":                 false,
		"hemostat_anomalies_total":               false,
		"hemostat_health_alerts_published_total": false,
		"hemostat_decisions_total":               false,
		"hemostat_model_fallbacks_total":         false,
		"hemostat_remediations_total":            false,
		"hemostat_rejections_total":              false,
		"hemostat_action_duration_seconds":       false,
		"hemostat_circuit_open_total":            false,
		"hemostat_notifications_deduped_total":   false,
		"hemostat_notifications_sent_total":      false,
	}

	for _, mf := range mfs {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestCounterIncrements(t *testing.T) {
	SamplesTotal.Add(1)
	HealthAlertsPublished.Add(1)
	ModelFallbacksTotal.Add(1)
	CircuitOpenTotal.Add(1)
	NotificationsDeduped.Add(1)
	// No panic = success; actual values verified via Gather if needed.
}

func TestActionDurationObserve(t *testing.T) {
	ActionDuration.Observe(0.5)
}
