package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// ModelClassifier consults an external model endpoint over plain HTTP,
// grounded on the real shape of the pack's own LLM client (a configurable
// provider/endpoint/model triple over net/http, not a vendored SDK).
// Malformed fields, timeout, or transport error are all reported as errors
// so the Analyzer falls back to the rule variant, per spec §4.3.
type ModelClassifier struct {
	Endpoint string
	APIKey   string
	HTTP     *http.Client
}

// NewModelClassifier builds a ModelClassifier with a default HTTP client.
func NewModelClassifier(endpoint, apiKey string) *ModelClassifier {
	return &ModelClassifier{
		Endpoint: endpoint,
		APIKey:   apiKey,
		HTTP:     &http.Client{},
	}
}

type modelRequest struct {
	Container     envelope.ContainerRef `json:"container"`
	Anomalies     []envelope.Anomaly    `json:"anomalies"`
	RecentSamples []envelope.Sample     `json:"recent_samples,omitempty"`
}

type modelResponse struct {
	Verdict    string  `json:"verdict"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classify sends the alert's anomaly list (and, if cached, recent samples
// for the same container) to the model endpoint. ctx's deadline is the
// Analyzer's configured model_deadline.
func (m *ModelClassifier) Classify(ctx context.Context, alert envelope.HealthAlertData) (envelope.Decision, error) {
	body, err := json.Marshal(modelRequest{
		Container:     alert.Container,
		Anomalies:     alert.Issues,
		RecentSamples: alert.RecentSamples,
	})
	if err != nil {
		return envelope.Decision{}, fmt.Errorf("analyzer: encode model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return envelope.Decision{}, fmt.Errorf("analyzer: build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.APIKey)
	}

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return envelope.Decision{}, fmt.Errorf("analyzer: model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return envelope.Decision{}, fmt.Errorf("analyzer: model returned status %d", resp.StatusCode)
	}

	var mr modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return envelope.Decision{}, fmt.Errorf("analyzer: decode model response: %w", err)
	}

	verdict := envelope.Verdict(mr.Verdict)
	if verdict != envelope.VerdictRealIssue && verdict != envelope.VerdictFalseAlarm {
		return envelope.Decision{}, fmt.Errorf("analyzer: model returned malformed verdict %q", mr.Verdict)
	}
	if mr.Confidence < 0 || mr.Confidence > 1 {
		return envelope.Decision{}, fmt.Errorf("analyzer: model returned out-of-range confidence %v", mr.Confidence)
	}

	action := envelope.Action(mr.Action)
	if verdict == envelope.VerdictFalseAlarm {
		action = envelope.ActionNone
	} else if action == "" || action == envelope.ActionNone {
		return envelope.Decision{}, fmt.Errorf("analyzer: model returned real_issue with no action")
	}

	return envelope.Decision{
		Verdict:        verdict,
		Action:         action,
		Confidence:     mr.Confidence,
		Reason:         mr.Reason,
		AnalysisMethod: envelope.MethodModel,
	}, nil
}

var _ Classifier = (*ModelClassifier)(nil)

// withDeadline applies d to ctx if d > 0, returning the resulting context
// and its cancel func (always non-nil; caller must call it).
func withDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
