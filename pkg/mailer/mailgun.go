package mailer

import (
	"context"
	"fmt"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

const sendTimeout = 10 * time.Second

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun sends through a single Mailgun client shared by every job.
type Mailgun struct {
	client *mg.MailgunImpl
	from   string
}

func NewMailgun(domain, apiKey, from string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), from: from}
}

// Send delivers a plain-text message, adding the HTML alternative when one is given.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.from, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if _, _, err := m.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailgun send to %s: %w", to, err)
	}
	return nil
}

var _ Sender = (*Mailgun)(nil)
