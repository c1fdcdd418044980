package envelope

import "time"

// ContainerRef identifies a container stably across the pipeline.
type ContainerRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Metrics is the resource-gauge snapshot carried on a ContainerSample.
type Metrics struct {
	CPUPercent     float64 `json:"cpu_percent"`
	HasCPUPercent  bool    `json:"has_cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	MemoryBytes    uint64  `json:"memory_bytes"`
	MemoryLimit    uint64  `json:"memory_limit"`
	NetRxBytes     uint64  `json:"net_rx_bytes"`
	NetTxBytes     uint64  `json:"net_tx_bytes"`
	BlkioReadBytes uint64  `json:"blkio_read_bytes"`
	BlkioWriteBytes uint64 `json:"blkio_write_bytes"`
}

// Status is a container lifecycle status per spec §3.1.
type Status string

const (
	StatusRunning     Status = "running"
	StatusExited      Status = "exited"
	StatusRestarting  Status = "restarting"
	StatusPaused      Status = "paused"
	StatusDead        Status = "dead"
	StatusUnknown     Status = "unknown"
)

// HealthStatus is a container's Docker HEALTHCHECK state.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthStarting  HealthStatus = "starting"
	HealthNone      HealthStatus = "none"
)

// Sample is one sampling observation of one container (spec §3.1 ContainerSample).
type Sample struct {
	Container     ContainerRef `json:"container"`
	Status        Status       `json:"status"`
	Metrics       Metrics      `json:"metrics"`
	HealthStatus  HealthStatus `json:"health_status"`
	ExitCode      int          `json:"exit_code"`
	RestartCount  int          `json:"restart_count"`
	SampledAt     time.Time    `json:"sampled_at"`
}

// AnomalyType enumerates the anomaly kinds Monitor can raise.
type AnomalyType string

const (
	AnomalyHighCPU            AnomalyType = "high_cpu"
	AnomalyHighMemory         AnomalyType = "high_memory"
	AnomalyUnhealthyStatus    AnomalyType = "unhealthy_status"
	AnomalyNonZeroExit        AnomalyType = "non_zero_exit"
	AnomalyExcessiveRestarts  AnomalyType = "excessive_restarts"
)

// Severity is the graduated severity of an Anomaly.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is a labeled deviation attached to a Sample (spec §3.1).
type Anomaly struct {
	Type     AnomalyType `json:"type"`
	Severity Severity    `json:"severity"`
	Threshold float64    `json:"threshold"`
	Observed  float64    `json:"observed"`
}

// HealthAlertData is the data field of a health_alert message (spec §6.2).
type HealthAlertData struct {
	Container    ContainerRef `json:"container"`
	Issues       []Anomaly    `json:"issues"`
	Metrics      Metrics      `json:"metrics"`
	Status       Status       `json:"status"`
	RestartCount int          `json:"restart_count"`
	ExitCode     int          `json:"exit_code"`
	HealthStatus HealthStatus `json:"health_status"`
	Sample       Sample       `json:"sample"`

	// RecentSamples is populated locally by the Analyzer from the
	// "stats:<container>" cache before a model classification call; it is
	// never set by Monitor and carries no wire meaning on health_alert
	// itself.
	RecentSamples []Sample `json:"recent_samples,omitempty"`
}

// Verdict is the Analyzer's classification of a HealthAlert.
type Verdict string

const (
	VerdictRealIssue  Verdict = "real_issue"
	VerdictFalseAlarm Verdict = "false_alarm"
)

// Action is a remediation action from HemoStat's fixed vocabulary.
type Action string

const (
	ActionRestart Action = "restart"
	ActionScaleUp Action = "scale_up"
	ActionCleanup Action = "cleanup"
	ActionExec    Action = "exec"
	ActionNone    Action = "none"
)

// AnalysisMethod records which Classifier produced a Decision.
type AnalysisMethod string

const (
	MethodModel AnalysisMethod = "model"
	MethodRule  AnalysisMethod = "rule"
)

// Decision is the Analyzer's classification of a HealthAlert (spec §3.1).
type Decision struct {
	Verdict        Verdict        `json:"verdict"`
	Action         Action         `json:"action"`
	Confidence     float64        `json:"confidence"`
	Reason         string         `json:"reason"`
	AnalysisMethod AnalysisMethod `json:"analysis_method"`
}

// RemediationNeededData is the data field of a remediation_needed message.
type RemediationNeededData struct {
	Container        ContainerRef `json:"container"`
	Action           Action       `json:"action"`
	Reason           string       `json:"reason"`
	Confidence       float64      `json:"confidence"`
	Metrics          Metrics      `json:"metrics"`
	OriginatingSample Sample      `json:"originating_sample"`
	DryRun           bool         `json:"dry_run"`
}

// RejectionReason enumerates why a Responder rejected a remediation request.
type RejectionReason string

const (
	RejectCooldownActive   RejectionReason = "cooldown_active"
	RejectCircuitOpen      RejectionReason = "circuit_open"
	RejectDryRunSkipped    RejectionReason = "dry_run_skipped"
	RejectUnknownContainer RejectionReason = "unknown_container"
	RejectUnsupportedAction RejectionReason = "unsupported_action"
	RejectNone             RejectionReason = ""
)

// Result is the outcome of a remediation attempt.
type Result string

const (
	ResultSuccess       Result = "success"
	ResultFailed        Result = "failed"
	ResultRejected      Result = "rejected"
	ResultNotApplicable Result = "not_applicable"
)

// RemediationCompleteData is the data field of a remediation_complete message
// (spec §3.1 RemediationOutcome, §6.2).
type RemediationCompleteData struct {
	Container       ContainerRef    `json:"container"`
	Action          Action          `json:"action"`
	Result          Result          `json:"result"`
	RejectionReason RejectionReason `json:"rejection_reason,omitempty"`
	DryRun          bool            `json:"dry_run"`
	Reason          string          `json:"reason,omitempty"`
	Confidence      float64         `json:"confidence,omitempty"`
	Error           string          `json:"error,omitempty"`
	DurationMS      int64           `json:"duration_ms"`
	Attempt         int             `json:"attempt"`
	OriginatingTimestamp time.Time  `json:"originating_timestamp"`
}

// FalseAlarmData is the data field of a false_alarm message.
type FalseAlarmData struct {
	Container      ContainerRef   `json:"container"`
	Reason         string         `json:"reason"`
	Confidence     float64        `json:"confidence"`
	AnalysisMethod AnalysisMethod `json:"analysis_method"`
}
