// Package notify delivers Alert agent notifications to external sinks.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// Payload is the normalized shape every notifier sends, built from either a
// RemediationCompleteData or a FalseAlarmData (spec §4.5).
type Payload struct {
	Kind       string                `json:"kind"` // "remediation_complete" or "false_alarm"
	Container  envelope.ContainerRef `json:"container"`
	Severity   string                `json:"severity"`
	Action     envelope.Action       `json:"action,omitempty"`
	Result     envelope.Result       `json:"result,omitempty"`
	Reason     string                `json:"reason,omitempty"`
	Confidence float64               `json:"confidence,omitempty"`
	Error      string                `json:"error,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Notifier sends a Payload to an external system.
type Notifier interface {
	Send(ctx context.Context, p Payload) error
	Name() string
}

// Logger is a minimal logging interface to avoid importing the logging
// package directly.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Multi fans a Payload out to every registered Notifier. A delivery failure
// on one sink never blocks the others, and never blocks persistence (which
// has already happened by the time Notify is called).
type Multi struct {
	mu        sync.RWMutex
	notifiers []Notifier
	log       Logger
}

// NewMulti creates a dispatcher from the given notifiers. A nil Notifier in
// the list is skipped, so callers can conditionally include the Slack sink
// without a branch at the call site.
func NewMulti(log Logger, notifiers ...Notifier) *Multi {
	var filtered []Notifier
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return &Multi{notifiers: filtered, log: log}
}

// Notify delivers p to every configured notifier, logging (not propagating)
// failures. Returns true if at least one sink succeeded, or none are
// configured.
func (m *Multi) Notify(ctx context.Context, p Payload) bool {
	m.mu.RLock()
	notifiers := m.notifiers
	m.mu.RUnlock()

	if len(notifiers) == 0 {
		return true
	}

	anyOK := false
	for _, n := range notifiers {
		if err := n.Send(ctx, p); err != nil {
			m.log.Error("notification delivery failed",
				"provider", n.Name(),
				"kind", p.Kind,
				"container", p.Container.Name,
				"error", err.Error(),
			)
		} else {
			anyOK = true
		}
	}
	return anyOK
}
