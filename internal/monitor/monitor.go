package monitor

import (
	"context"
	"time"

	dockercontainer "github.com/moby/moby/api/types/container"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/clock"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/metrics"
	"github.com/jondmarien/hemostat/internal/runtime"
)

// statsCacheTTL matches spec §6.3's "stats:<container>" entry (latest
// sample for UI and for the Analyzer's model-classification window).
const statsCacheTTL = 300 * time.Second

// Monitor is the agent that samples every container on a fixed interval,
// detects anomalies, and publishes one health_alert per container that has
// any (spec §3.2 "Contract").
type Monitor struct {
	rt      *agentrt.Runtime
	api     runtime.API
	cfg     *config.Config
	clk     clock.Clock
	tracker *tracker
}

// New wires a Monitor from its runtime, container API, config, and clock.
func New(rt *agentrt.Runtime, api runtime.API, cfg *config.Config, clk clock.Clock) *Monitor {
	return &Monitor{rt: rt, api: api, cfg: cfg, clk: clk, tracker: newTracker()}
}

// Run polls on cfg.PollInterval() until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.rt.SetState(agentrt.StateRunning)
	for {
		m.scan(ctx)

		select {
		case <-ctx.Done():
			m.rt.SetState(agentrt.StateDraining)
			return ctx.Err()
		case <-m.clk.After(m.cfg.PollInterval()):
		}
	}
}

// scan samples every container once and publishes health_alert for any
// with detected anomalies. Errors sampling one container are logged and do
// not abort the rest of the scan.
func (m *Monitor) scan(ctx context.Context) {
	containers, err := m.api.ListAllContainers(ctx)
	if err != nil {
		m.rt.Log.Error("list containers failed", "error", err)
		return
	}

	live := make(map[string]struct{}, len(containers))
	for _, c := range containers {
		live[c.ID] = struct{}{}
	}
	m.tracker.prune(live)

	for _, c := range containers {
		m.sampleOne(ctx, c)
	}
}

func (m *Monitor) sampleOne(ctx context.Context, summary dockercontainer.Summary) {
	s, stats, err := sample(ctx, m.api, summary)
	if err != nil {
		m.rt.Log.Error("sample failed", "container", summary.ID, "error", err)
		return
	}
	metrics.SamplesTotal.Add(1)

	prev, ready := m.tracker.advance(summary.ID, stats)
	if ready {
		if pct, ok := cpuPercent(prev, stats); ok {
			s.Metrics.CPUPercent = pct
			s.Metrics.HasCPUPercent = true
		}
	}

	if err := m.rt.SetJSON(ctx, "stats:"+summary.ID, s, statsCacheTTL); err != nil {
		m.rt.Log.Error("cache sample failed", "container", summary.ID, "error", err)
	}

	anomalies := detectAnomalies(s, m.cfg.CPUThreshold(), m.cfg.MemoryThreshold())
	if len(anomalies) == 0 {
		return
	}
	for _, a := range anomalies {
		metrics.AnomaliesTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	}

	data := envelope.HealthAlertData{
		Container:    s.Container,
		Issues:       anomalies,
		Metrics:      s.Metrics,
		Status:       s.Status,
		RestartCount: s.RestartCount,
		ExitCode:     s.ExitCode,
		HealthStatus: s.HealthStatus,
		Sample:       s,
	}
	if err := m.rt.Publish(ctx, envelope.KindHealthAlert, data); err != nil {
		m.rt.Log.Error("publish health_alert failed", "container", summary.ID, "error", err)
		return
	}
	metrics.HealthAlertsPublished.Add(1)
}
