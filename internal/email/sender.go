package email

import (
	"context"
	"fmt"

	"workorders_backend/platform/config"
)

// OrderMessage is the content of one order notification email.
type OrderMessage struct {
	RecipientName string
	Subject       string
	Heading       string
	Body          string
	OrderTitle    string
	OrderURL      string
}

type Sender interface {
	SendOrderNotification(ctx context.Context, toEmail string, msg OrderMessage) error
}

type NoopSender struct{}

func (NoopSender) SendOrderNotification(ctx context.Context, toEmail string, msg OrderMessage) error {
	return nil
}

// NewSender returns an SMTP sender when email is enabled and a no-op sender
// otherwise.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" || cfg.GetEmailFromAddress() == "" {
		return nil, fmt.Errorf("email enabled but SMTP_HOST or EMAIL_FROM_ADDRESS is missing")
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
