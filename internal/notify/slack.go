package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/jondmarien/hemostat/internal/envelope"
)

// Slack delivers notifications to a channel via the Slack Web API, used as
// the optional secondary sink behind the required webhook (spec §4.5).
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack creates a Slack notifier posting to channel with token.
func NewSlack(token, channel string) *Slack {
	return &Slack{client: slack.New(token), channel: channel}
}

// Name returns the provider name for logging.
func (s *Slack) Name() string { return "slack" }

// Send posts p to the configured channel, colored by severity.
func (s *Slack) Send(ctx context.Context, p Payload) error {
	attachment := slack.Attachment{
		Color:  slackColor(p.Severity),
		Title:  slackTitle(p),
		Text:   slackText(p),
		Fields: slackFields(p),
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionAttachments(attachment),
		slack.MsgOptionAsUser(false),
	)
	if err != nil {
		return fmt.Errorf("post slack message: %w", err)
	}
	return nil
}

func slackColor(severity string) string {
	switch severity {
	case "success":
		return "good"
	case "error":
		return "danger"
	case "warning":
		return "warning"
	default:
		return "#808080"
	}
}

func slackTitle(p Payload) string {
	if p.Kind == "false_alarm" {
		return "HemoStat: false alarm — " + p.Container.Name
	}
	return fmt.Sprintf("HemoStat: %s %s — %s", p.Action, p.Result, p.Container.Name)
}

func slackText(p Payload) string {
	if p.Reason != "" {
		return p.Reason
	}
	return "no reason recorded"
}

func slackFields(p Payload) []slack.AttachmentField {
	fields := []slack.AttachmentField{
		{Title: "container", Value: p.Container.Name, Short: true},
	}
	if p.Action != "" && p.Action != envelope.ActionNone {
		fields = append(fields, slack.AttachmentField{Title: "action", Value: string(p.Action), Short: true})
	}
	if p.Confidence > 0 {
		fields = append(fields, slack.AttachmentField{Title: "confidence", Value: fmt.Sprintf("%.2f", p.Confidence), Short: true})
	}
	if p.Error != "" {
		fields = append(fields, slack.AttachmentField{Title: "error", Value: p.Error, Short: false})
	}
	return fields
}
