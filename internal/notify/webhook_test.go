package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jondmarien/hemostat/internal/envelope"
)

func testPayload() Payload {
	return Payload{
		Kind:      "remediation_complete",
		Container: envelope.ContainerRef{ID: "c1", Name: "web"},
		Severity:  "success",
		Action:    "restart",
		Result:    "success",
		Timestamp: time.Now(),
	}
}

func TestWebhookSendSucceedsOnFirstAttempt(t *testing.T) {
	var received Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, map[string]string{"X-Test": "1"})
	if err := wh.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if received.Container.ID != "c1" {
		t.Errorf("received container ID = %q, want c1", received.Container.ID)
	}
}

func TestWebhookSendRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, nil)
	if err := wh.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestWebhookSendGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, nil)
	err := wh.Send(context.Background(), testPayload())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&attempts); got != webhookMaxAttempts {
		t.Errorf("attempts = %d, want %d", got, webhookMaxAttempts)
	}
}

func TestWebhookHonorsNumericRetryAfter(t *testing.T) {
	var attempts int32
	var firstAttemptAt, secondAttemptAt time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			firstAttemptAt = time.Now()
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		secondAttemptAt = time.Now()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, nil)
	if err := wh.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gap := secondAttemptAt.Sub(firstAttemptAt); gap < 900*time.Millisecond {
		t.Errorf("retry gap = %s, want >= ~1s honoring Retry-After", gap)
	}
}

func TestRetryAfterParsing(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"empty defaults to 1s", "", time.Second},
		{"numeric seconds", "5", 5 * time.Second},
		{"non-numeric non-date defaults to 1s", "garbage", time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryAfter(tc.header); got != tc.want {
				t.Errorf("retryAfter(%q) = %s, want %s", tc.header, got, tc.want)
			}
		})
	}
}
