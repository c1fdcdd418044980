package monitor

import "github.com/jondmarien/hemostat/internal/envelope"

// excessiveRestartThreshold is the restart count above which Monitor raises
// an excessive_restarts anomaly. Not configurable: spec §3.2's
// representative rule table gives it as a fixed constant, unlike the
// percentage thresholds which are tunable.
const excessiveRestartThreshold = 5

// detectAnomalies evaluates a Sample against the configured CPU/memory
// thresholds and the fixed rules for status/exit/restarts (spec §3.2).
func detectAnomalies(s envelope.Sample, cpuThreshold, memThreshold float64) []envelope.Anomaly {
	var anomalies []envelope.Anomaly

	if s.Metrics.HasCPUPercent && s.Metrics.CPUPercent > cpuThreshold {
		anomalies = append(anomalies, envelope.Anomaly{
			Type:      envelope.AnomalyHighCPU,
			Severity:  graduate(s.Metrics.CPUPercent, cpuThreshold),
			Threshold: cpuThreshold,
			Observed:  s.Metrics.CPUPercent,
		})
	}

	if s.Metrics.MemoryPercent > memThreshold {
		anomalies = append(anomalies, envelope.Anomaly{
			Type:      envelope.AnomalyHighMemory,
			Severity:  graduate(s.Metrics.MemoryPercent, memThreshold),
			Threshold: memThreshold,
			Observed:  s.Metrics.MemoryPercent,
		})
	}

	if s.HealthStatus == envelope.HealthUnhealthy {
		anomalies = append(anomalies, envelope.Anomaly{
			Type:     envelope.AnomalyUnhealthyStatus,
			Severity: envelope.SeverityHigh,
		})
	}

	if s.Status == envelope.StatusExited && s.ExitCode != 0 {
		anomalies = append(anomalies, envelope.Anomaly{
			Type:     envelope.AnomalyNonZeroExit,
			Severity: envelope.SeverityHigh,
			Observed: float64(s.ExitCode),
		})
	}

	if s.RestartCount > excessiveRestartThreshold {
		anomalies = append(anomalies, envelope.Anomaly{
			Type:      envelope.AnomalyExcessiveRestarts,
			Severity:  envelope.SeverityMedium,
			Threshold: excessiveRestartThreshold,
			Observed:  float64(s.RestartCount),
		})
	}

	return anomalies
}

// graduate maps an observed value against its threshold to a severity
// using the multiples in spec §3.2: critical above 95 (absolute, for the
// percentage metrics this tracks), high above threshold, medium above
// 0.8x threshold.
func graduate(observed, threshold float64) envelope.Severity {
	switch {
	case observed > 95:
		return envelope.SeverityCritical
	case observed > threshold:
		return envelope.SeverityHigh
	default:
		return envelope.SeverityMedium
	}
}
