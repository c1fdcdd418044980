package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/jondmarien/hemostat/internal/agentrt"
	"github.com/jondmarien/hemostat/internal/broker"
	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/envelope"
	"github.com/jondmarien/hemostat/internal/kvstore"
	"github.com/jondmarien/hemostat/internal/logging"
)

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) { return nil, kvstore.ErrNotFound }
func (noopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopStore) Delete(context.Context, string) error { return nil }
func (noopStore) AppendBounded(context.Context, string, []byte, int, time.Duration) error { return nil }
func (noopStore) ListBounded(context.Context, string) ([][]byte, error) { return nil, nil }
func (noopStore) AtomicCheckAndSet(context.Context, string, []byte, []byte, time.Duration) (bool, error) {
	return true, nil
}
func (noopStore) Close() error { return nil }

func newTestAnalyzer(t *testing.T, cfg *config.Config) (*Analyzer, *broker.InProcess) {
	t.Helper()
	b := broker.NewInProcess()
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	rt := agentrt.New("analyzer", b, noopStore{}, logging.New(false))
	return New(rt, cfg, nil), b
}

func TestAnalyzerPublishesRemediationNeededAboveThreshold(t *testing.T) {
	cfg := config.NewTestConfig()
	a, b := newTestAnalyzer(t, cfg)

	received := make(chan envelope.RemediationNeededData, 1)
	if err := b.Subscribe(context.Background(), envelope.Topic(envelope.KindRemediationNeeded), func(_ context.Context, payload []byte) error {
		env, err := envelope.Decode(payload)
		if err != nil {
			return err
		}
		var data envelope.RemediationNeededData
		if err := env.Unmarshal(&data); err != nil {
			return err
		}
		received <- data
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	alert := envelope.HealthAlertData{
		Container: envelope.ContainerRef{ID: "c1", Name: "svc-a"},
		Issues:    []envelope.Anomaly{{Type: envelope.AnomalyNonZeroExit}},
	}
	if err := a.handle(context.Background(), alert); err != nil {
		t.Fatalf("handle: %v", err)
	}

	select {
	case data := <-received:
		if data.Action != envelope.ActionRestart {
			t.Errorf("Action = %s, want restart", data.Action)
		}
		if data.Confidence != 0.95 {
			t.Errorf("Confidence = %v, want 0.95", data.Confidence)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for remediation_needed")
	}
}

func TestAnalyzerPublishesFalseAlarmBelowThreshold(t *testing.T) {
	cfg := config.NewTestConfig()
	a, b := newTestAnalyzer(t, cfg)

	received := make(chan envelope.FalseAlarmData, 1)
	if err := b.Subscribe(context.Background(), envelope.Topic(envelope.KindFalseAlarm), func(_ context.Context, payload []byte) error {
		env, err := envelope.Decode(payload)
		if err != nil {
			return err
		}
		var data envelope.FalseAlarmData
		if err := env.Unmarshal(&data); err != nil {
			return err
		}
		received <- data
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	alert := envelope.HealthAlertData{
		Container: envelope.ContainerRef{ID: "c1", Name: "svc-a"},
		Issues:    []envelope.Anomaly{{Type: envelope.AnomalyExcessiveRestarts}},
	}
	if err := a.handle(context.Background(), alert); err != nil {
		t.Fatalf("handle: %v", err)
	}

	select {
	case data := <-received:
		if data.Confidence != 0.4 {
			t.Errorf("Confidence = %v, want 0.4", data.Confidence)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for false_alarm")
	}
}
