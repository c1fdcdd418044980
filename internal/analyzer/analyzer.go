package analyzer

import (
	"context"
	"errors"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/kvstore"
	"github.com/jondmarien/hemostat/internal/metrics"
)

// Analyzer subscribes to health_alert and publishes remediation_needed or
// false_alarm for each, applying a primary classifier (the model variant,
// if enabled) with fallback to the rule variant (spec §4.3).
type Analyzer struct {
	rt    *agentrt.Runtime
	cfg   *config.Config
	model Classifier // nil when model_enabled=false
	rule  Classifier
}

// New wires an Analyzer. model may be nil; it is only consulted when
// cfg.ModelEnabled() is true.
func New(rt *agentrt.Runtime, cfg *config.Config, model Classifier) *Analyzer {
	return &Analyzer{rt: rt, cfg: cfg, model: model, rule: RuleClassifier{}}
}

// Run subscribes to health_alert and processes messages until ctx is
// cancelled. Per spec §4.3, handling is synchronous per alert and
// in-order, which the broker's per-channel serial dispatch already
// guarantees.
func (a *Analyzer) Run(ctx context.Context) error {
	err := a.rt.Subscribe(ctx, envelope.KindHealthAlert, func(ctx context.Context, env envelope.Envelope) error {
		var data envelope.HealthAlertData
		if err := env.Unmarshal(&data); err != nil {
			return err
		}
		return a.handle(ctx, data)
	})
	if err != nil {
		return err
	}
	a.rt.SetState(agentrt.StateRunning)
	<-ctx.Done()
	a.rt.SetState(agentrt.StateDraining)
	return ctx.Err()
}

func (a *Analyzer) handle(ctx context.Context, alert envelope.HealthAlertData) error {
	decision, drop := a.classify(ctx, alert)
	if drop {
		return nil
	}
	metrics.DecisionsTotal.WithLabelValues(string(decision.Verdict), string(decision.AnalysisMethod)).Inc()

	if decision.Verdict == envelope.VerdictRealIssue && decision.Confidence >= a.cfg.ConfidenceThreshold() {
		return a.rt.Publish(ctx, envelope.KindRemediationNeeded, envelope.RemediationNeededData{
			Container:         alert.Container,
			Action:            decision.Action,
			Reason:            decision.Reason,
			Confidence:        decision.Confidence,
			Metrics:           alert.Metrics,
			OriginatingSample: alert.Sample,
			DryRun:            a.cfg.DryRun(),
		})
	}

	reason := decision.Reason
	if decision.Verdict == envelope.VerdictRealIssue {
		// Real-but-uncertain: preserve that distinction for the operator UI
		// per spec §4.3, rather than reporting it identically to a true
		// false_alarm.
		reason = "real issue suspected but confidence below threshold: " + reason
	}
	return a.rt.Publish(ctx, envelope.KindFalseAlarm, envelope.FalseAlarmData{
		Container:      alert.Container,
		Reason:         reason,
		Confidence:     decision.Confidence,
		AnalysisMethod: decision.AnalysisMethod,
	})
}

// classify consults the model classifier (if enabled) within its deadline,
// falling back to the rule classifier on any error or if the model variant
// is disabled. drop is true when the alert should be silently dropped
// rather than published as either remediation_needed or false_alarm (spec
// §4.3/§7: model failure with fallback disabled logs a WARN and drops the
// alert, it does not report a false alarm).
func (a *Analyzer) classify(ctx context.Context, alert envelope.HealthAlertData) (decision envelope.Decision, drop bool) {
	if a.cfg.ModelEnabled() && a.model != nil {
		alert.RecentSamples = a.cachedSamples(ctx, alert.Container.ID)
		mctx, cancel := withDeadline(ctx, a.cfg.ModelDeadline())
		decision, err := a.model.Classify(mctx, alert)
		cancel()
		if err == nil {
			return decision, false
		}
		a.rt.Log.Warn("model classification failed, falling back to rules", "error", err)
		metrics.ModelFallbacksTotal.Add(1)
		if !a.cfg.ModelFallbackEnabled() {
			a.rt.Log.Warn("model fallback disabled, dropping alert", "container", alert.Container.ID)
			return envelope.Decision{}, true
		}
	}

	decision, err := a.rule.Classify(ctx, alert)
	if err != nil {
		// RuleClassifier never errors; this only guards against a future
		// implementation that does.
		a.rt.Log.Error("rule classification failed", "error", err)
		return envelope.Decision{Verdict: envelope.VerdictFalseAlarm, Action: envelope.ActionNone, Reason: "classification error", AnalysisMethod: envelope.MethodRule}, false
	}
	return decision, false
}

// cachedSamples reads Monitor's "stats:<container>" cache for a small
// recent-samples window to hand the model classifier (spec §4.3: "a small
// window of recent samples for the same container, if cached"). The cache
// only ever holds the latest sample, so the window is at most one entry;
// a miss is not an error, it just means the model sees no history.
func (a *Analyzer) cachedSamples(ctx context.Context, containerID string) []envelope.Sample {
	var s envelope.Sample
	if err := a.rt.GetJSON(ctx, "stats:"+containerID, &s); err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			a.rt.Log.Warn("read stats cache failed", "container", containerID, "error", err)
		}
		return nil
	}
	return []envelope.Sample{s}
}
