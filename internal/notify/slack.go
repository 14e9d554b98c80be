package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// Slack posts to an incoming webhook.
type Slack struct {
	url  string
	post func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error
}

// NewSlack returns a Slack notifier for webhookURL.
func NewSlack(webhookURL string) *Slack {
	return &Slack{url: webhookURL, post: slackapi.PostWebhookContext}
}

func (s *Slack) Notify(ctx context.Context, subject, body string) error {
	msg := &slackapi.WebhookMessage{Text: fmt.Sprintf("*%s*\n%s", subject, body)}
	if err := s.post(ctx, s.url, msg); err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}
