package analyzer

import (
	"context"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// ruleRow is one entry in the rule table. matches inspects the alert and
// reports whether the row applies, along with the anomaly it matched; the
// row's own verdict/action/confidence/reason fields form the decision.
type ruleRow struct {
	matches func(envelope.HealthAlertData) (matched bool, anomaly envelope.Anomaly)
	verdict envelope.Verdict
	action  envelope.Action
	confidence float64
	reason  string
}

// ruleTable is the representative minimal table from spec §4.3. Kept as
// data, not code, per spec §9 ("production rules may be richer; they
// should remain data").
var ruleTable = []ruleRow{
	{
		matches: matchAnomaly(envelope.AnomalyHighCPU, func(a envelope.Anomaly) bool { return a.Observed > 95 }),
		verdict: envelope.VerdictRealIssue, action: envelope.ActionRestart, confidence: 0.9,
		reason: "cpu usage above 95%",
	},
	{
		matches: matchAnomaly(envelope.AnomalyHighCPU, func(a envelope.Anomaly) bool { return a.Observed > 85 && a.Observed <= 95 }),
		verdict: envelope.VerdictRealIssue, action: envelope.ActionRestart, confidence: 0.75,
		reason: "cpu usage above 85%",
	},
	{
		matches: matchAnomaly(envelope.AnomalyHighMemory, func(a envelope.Anomaly) bool { return a.Observed > 90 }),
		verdict: envelope.VerdictRealIssue, action: envelope.ActionRestart, confidence: 0.9,
		reason: "memory usage above 90%",
	},
	{
		matches: matchAnomaly(envelope.AnomalyNonZeroExit, func(envelope.Anomaly) bool { return true }),
		verdict: envelope.VerdictRealIssue, action: envelope.ActionRestart, confidence: 0.95,
		reason: "container exited non-zero",
	},
	{
		matches: matchAnomaly(envelope.AnomalyExcessiveRestarts, func(envelope.Anomaly) bool { return true }),
		verdict: envelope.VerdictFalseAlarm, action: envelope.ActionNone, confidence: 0.4,
		reason: "excessive restarts already evidence of prior remediation, avoid looping",
	},
}

// matchAnomaly returns a matches func that finds the first anomaly of kind
// in the alert's issue list satisfying cond.
func matchAnomaly(kind envelope.AnomalyType, cond func(envelope.Anomaly) bool) func(envelope.HealthAlertData) (bool, envelope.Anomaly) {
	return func(alert envelope.HealthAlertData) (bool, envelope.Anomaly) {
		for _, a := range alert.Issues {
			if a.Type == kind && cond(a) {
				return true, a
			}
		}
		return false, envelope.Anomaly{}
	}
}

// RuleClassifier is the deterministic table-driven Classifier. It never
// errors: an alert matching nothing in the table is a false_alarm.
type RuleClassifier struct{}

func (RuleClassifier) Classify(_ context.Context, alert envelope.HealthAlertData) (envelope.Decision, error) {
	for _, row := range ruleTable {
		if matched, _ := row.matches(alert); matched {
			return envelope.Decision{
				Verdict:        row.verdict,
				Action:         row.action,
				Confidence:     row.confidence,
				Reason:         row.reason,
				AnalysisMethod: envelope.MethodRule,
			}, nil
		}
	}
	return envelope.Decision{
		Verdict:        envelope.VerdictFalseAlarm,
		Action:         envelope.ActionNone,
		Confidence:     0,
		Reason:         "no matching rule for observed anomalies",
		AnalysisMethod: envelope.MethodRule,
	}, nil
}

var _ Classifier = RuleClassifier{}
