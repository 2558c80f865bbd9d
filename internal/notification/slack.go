package notification

import (
	"context"
	"errors"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// ChatNotifier posts short manager-facing alerts to a team channel.
type ChatNotifier interface {
	Notify(ctx context.Context, alert ChatAlert) error
}

// ChatAlert is one channel message about an order.
type ChatAlert struct {
	Title   string
	Text    string
	Color   string
	OrderID string
	Manager string
}

const (
	colorGood    = "good"
	colorWarning = "warning"
	colorDanger  = "danger"
)

type webhookPoster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackNotifier delivers alerts through an incoming webhook.
type SlackNotifier struct {
	webhookURL string
	post       webhookPoster
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, post: slackapi.PostWebhookContext}
}

func (s *SlackNotifier) Notify(ctx context.Context, alert ChatAlert) error {
	if s == nil || s.webhookURL == "" {
		return nil
	}
	msg := &slackapi.WebhookMessage{
		Text:        alert.Title,
		Attachments: []slackapi.Attachment{alertAttachment(alert)},
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		var rle *slackapi.RateLimitedError
		if errors.As(err, &rle) {
			return fmt.Errorf("slack webhook rate limited, retry after %s: %w", rle.RetryAfter, err)
		}
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

func alertAttachment(alert ChatAlert) slackapi.Attachment {
	att := slackapi.Attachment{
		Color:    alert.Color,
		Text:     alert.Text,
		Fallback: alert.Title,
	}
	if alert.OrderID != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Order", Value: alert.OrderID, Short: true})
	}
	if alert.Manager != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Manager", Value: alert.Manager, Short: true})
	}
	return att
}
