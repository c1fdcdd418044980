package analyzer

import (
	"context"
	"testing"

	"github.com/jondmarien/hemostat/internal/envelope"
)

func TestRuleClassifierHighCPUCritical(t *testing.T) {
	alert := envelope.HealthAlertData{
		Issues: []envelope.Anomaly{{Type: envelope.AnomalyHighCPU, Observed: 97}},
	}
	d, err := RuleClassifier{}.Classify(context.Background(), alert)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Verdict != envelope.VerdictRealIssue || d.Action != envelope.ActionRestart || d.Confidence != 0.9 {
		t.Errorf("got %+v, want real_issue/restart/0.9", d)
	}
}

func TestRuleClassifierHighCPUModerate(t *testing.T) {
	alert := envelope.HealthAlertData{
		Issues: []envelope.Anomaly{{Type: envelope.AnomalyHighCPU, Observed: 88}},
	}
	d, _ := RuleClassifier{}.Classify(context.Background(), alert)
	if d.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", d.Confidence)
	}
}

func TestRuleClassifierNonZeroExit(t *testing.T) {
	alert := envelope.HealthAlertData{
		Issues: []envelope.Anomaly{{Type: envelope.AnomalyNonZeroExit}},
	}
	d, _ := RuleClassifier{}.Classify(context.Background(), alert)
	if d.Verdict != envelope.VerdictRealIssue || d.Confidence != 0.95 {
		t.Errorf("got %+v, want real_issue/0.95", d)
	}
}

func TestRuleClassifierExcessiveRestartsIsFalseAlarm(t *testing.T) {
	alert := envelope.HealthAlertData{
		Issues: []envelope.Anomaly{{Type: envelope.AnomalyExcessiveRestarts}},
	}
	d, _ := RuleClassifier{}.Classify(context.Background(), alert)
	if d.Verdict != envelope.VerdictFalseAlarm || d.Action != envelope.ActionNone {
		t.Errorf("got %+v, want false_alarm/none", d)
	}
}

func TestRuleClassifierUnmatchedIsFalseAlarm(t *testing.T) {
	alert := envelope.HealthAlertData{
		Issues: []envelope.Anomaly{{Type: envelope.AnomalyHighCPU, Observed: 50}},
	}
	d, _ := RuleClassifier{}.Classify(context.Background(), alert)
	if d.Verdict != envelope.VerdictFalseAlarm {
		t.Errorf("Verdict = %s, want false_alarm", d.Verdict)
	}
}
