package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jondmarien/hemostat/internal/config"
	"github.com/jondmarien/hemostat/internal/kvstore"
)

// auditEntry mirrors the wire shape the Responder writes to
// "audit:<container>" (internal/responder/safety.go). Duplicated here
// rather than imported since the CLI only ever reads the JSON, not the
// Responder's behavior.
type auditEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Action          string    `json:"action"`
	Result          string    `json:"result"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	DryRun          bool      `json:"dry_run"`
	Error           string    `json:"error,omitempty"`
}

// runAudit prints the audit trail for one container, newest-last, matching
// the order the Responder appends in.
func runAudit(ctx context.Context, cfg *config.Config, containerID string) error {
	store, _, err := backendFactoryFor(cfg)()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	return printAudit(ctx, store, containerID)
}

func printAudit(ctx context.Context, store kvstore.Store, containerID string) error {
	raw, err := store.ListBounded(ctx, "audit:"+containerID)
	if err != nil {
		return fmt.Errorf("list audit trail: %w", err)
	}
	if len(raw) == 0 {
		fmt.Printf("no audit entries for container %s\n", containerID)
		return nil
	}

	for _, r := range raw {
		var e auditEntry
		if err := json.Unmarshal(r, &e); err != nil {
			fmt.Printf("<malformed entry: %v>\n", err)
			continue
		}
		line := fmt.Sprintf("%s  action=%-10s result=%-14s dry_run=%t",
			e.Timestamp.Format(time.RFC3339), e.Action, e.Result, e.DryRun)
		if e.RejectionReason != "" {
			line += "  reason=" + e.RejectionReason
		}
		if e.Error != "" {
			line += "  error=" + e.Error
		}
		fmt.Println(line)
	}
	return nil
}
