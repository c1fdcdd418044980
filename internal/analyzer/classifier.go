// Package analyzer implements the Analyzer agent: consuming health_alert
// messages, classifying them via a model-or-rule capability, and publishing
// remediation_needed or false_alarm (spec §4.3).
package analyzer

import (
	"context"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// Classifier is the decision capability the Analyzer is polymorphic over.
// Two implementations are provided: ModelClassifier (primary, optional) and
// RuleClassifier (deterministic fallback, always available).
type Classifier interface {
	Classify(ctx context.Context, alert envelope.HealthAlertData) (envelope.Decision, error)
}
