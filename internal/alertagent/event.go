// Package alertagent implements the Alert agent: persisting every
// remediation_complete/false_alarm event to bounded UI lists and
// delivering deduplicated notifications to the configured sinks (spec
// §4.5).
package alertagent

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// eventRecord is the wrapper placed in bounded per-kind lists (spec §3.1
// EventRecord).
type eventRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Publisher string          `json:"publisher"`
	Kind      string          `json:"kind"`
	Payload   any             `json:"payload"`
}

// Severity is the notification color/severity tag (spec §4.5 mapping table).
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityMuted   Severity = "muted"
)

// severityForResult derives the notification tag from a remediation_complete
// Result. False-alarm notifications are tagged SeverityInfo by their handler.
func severityForResult(result envelope.Result) Severity {
	switch result {
	case envelope.ResultSuccess:
		return SeveritySuccess
	case envelope.ResultFailed:
		return SeverityError
	case envelope.ResultRejected:
		return SeverityWarning
	case envelope.ResultNotApplicable:
		return SeverityMuted
	default:
		return SeverityInfo
	}
}

// dedupKey hashes (container_id, kind, reason_or_action, minute_bucket) per
// spec §4.5, using the same xxhash function the pack's gateway dedup layer
// uses for its TTL-bounded dedup keys.
func dedupKey(containerID, kind, reasonOrAction string, at time.Time) string {
	bucket := at.UTC().Truncate(time.Minute).Unix()
	raw := containerID + "|" + kind + "|" + reasonOrAction + "|" + strconv.FormatInt(bucket, 10)
	return "dedupe:" + strconv.FormatUint(xxhash.Sum64String(raw), 10)
}
