package alertagent

import (
	"context"
	"time"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/metrics"
	"github.com/jondmarien/hemostat/internal/notify"
)

// Alert subscribes to remediation_complete and false_alarm, persists every
// event unconditionally, then deduplicates and delivers a notification
// (spec §4.5).
type Alert struct {
	rt    *agentrt.Runtime
	cfg   *config.Config
	sinks *notify.Multi
}

// New wires an Alert agent. sinks fans out to the webhook (required by
// config presence) and the optional Slack channel.
func New(rt *agentrt.Runtime, cfg *config.Config, sinks *notify.Multi) *Alert {
	return &Alert{rt: rt, cfg: cfg, sinks: sinks}
}

// Run subscribes to both upstream channels until ctx is cancelled.
func (a *Alert) Run(ctx context.Context) error {
	if err := a.rt.Subscribe(ctx, envelope.KindRemediationComplete, a.handleRemediationComplete); err != nil {
		return err
	}
	if err := a.rt.Subscribe(ctx, envelope.KindFalseAlarm, a.handleFalseAlarm); err != nil {
		return err
	}
	a.rt.SetState(agentrt.StateRunning)
	<-ctx.Done()
	a.rt.SetState(agentrt.StateDraining)
	return ctx.Err()
}

func (a *Alert) handleRemediationComplete(ctx context.Context, env envelope.Envelope) error {
	var d envelope.RemediationCompleteData
	if err := env.Unmarshal(&d); err != nil {
		return err
	}

	a.persist(ctx, envelope.KindRemediationComplete, env.Timestamp, d)

	reasonOrAction := string(d.Action)
	if d.RejectionReason != envelope.RejectNone {
		reasonOrAction = string(d.RejectionReason)
	}
	payload := notify.Payload{
		Kind:       envelope.KindRemediationComplete,
		Container:  d.Container,
		Severity:   string(severityForResult(d.Result)),
		Action:     d.Action,
		Result:     d.Result,
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Error:      d.Error,
		Timestamp:  env.Timestamp,
	}
	a.deliver(ctx, d.Container.ID, envelope.KindRemediationComplete, reasonOrAction, env.Timestamp, payload)
	return nil
}

func (a *Alert) handleFalseAlarm(ctx context.Context, env envelope.Envelope) error {
	var d envelope.FalseAlarmData
	if err := env.Unmarshal(&d); err != nil {
		return err
	}

	a.persist(ctx, envelope.KindFalseAlarm, env.Timestamp, d)

	payload := notify.Payload{
		Kind:       envelope.KindFalseAlarm,
		Container:  d.Container,
		Severity:   string(SeverityInfo),
		Reason:     d.Reason,
		Confidence: d.Confidence,
		Timestamp:  env.Timestamp,
	}
	a.deliver(ctx, d.Container.ID, envelope.KindFalseAlarm, d.Reason, env.Timestamp, payload)
	return nil
}

// persist writes the event to its per-kind bounded list and the combined
// "all" list, unconditionally and before any delivery attempt (spec §4.5
// "persist before delivery").
func (a *Alert) persist(ctx context.Context, kind string, at time.Time, payload any) {
	rec := eventRecord{Timestamp: at, Publisher: a.rt.Name, Kind: kind, Payload: payload}
	maxLen := a.cfg.MaxEventsPerKind()
	ttl := a.cfg.EventsTTL()

	if err := a.rt.AppendBoundedJSON(ctx, "events:"+kind, rec, maxLen, ttl); err != nil {
		a.rt.Log.Error("persist event failed", "kind", kind, "error", err)
	}
	if err := a.rt.AppendBoundedJSON(ctx, "events:all", rec, maxLen, ttl); err != nil {
		a.rt.Log.Error("persist combined event failed", "kind", kind, "error", err)
	}
}

// deliver deduplicates on (container, kind, reason_or_action, minute
// bucket) and, if this is the first claim of that key, fans the
// notification out to the configured sinks.
func (a *Alert) deliver(ctx context.Context, containerID, kind, reasonOrAction string, at time.Time, payload notify.Payload) {
	if !a.cfg.NotificationsEnabled() {
		return
	}

	key := dedupKey(containerID, kind, reasonOrAction, at)
	claimed, err := a.rt.TryClaim(ctx, key, []byte("1"), a.cfg.DedupeTTL())
	if err != nil {
		a.rt.Log.Error("dedup claim failed", "container", containerID, "error", err)
		return
	}
	if !claimed {
		a.rt.Log.Info("notification deduped", "container", containerID, "kind", kind, "reason_or_action", reasonOrAction)
		metrics.NotificationsDeduped.Inc()
		return
	}

	if a.sinks.Notify(ctx, payload) {
		metrics.NotificationsSent.WithLabelValues("any", "success").Inc()
	} else {
		metrics.NotificationsSent.WithLabelValues("any", "failed").Inc()
	}
}
