package mailer

import (
	"context"
	"errors"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
	"github.com/sirupsen/logrus"
)

// Sender delivers one rendered email.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// Mailgun sends through the Mailgun HTTP API.
type Mailgun struct {
	client  *mg.MailgunImpl
	sender  string
	timeout time.Duration
}

func NewMailgun(domain, apiKey, sender string) (*Mailgun, error) {
	if domain == "" || apiKey == "" || sender == "" {
		return nil, errors.New("mailgun: domain, api key and sender are required")
	}
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), sender: sender, timeout: 10 * time.Second}, nil
}

// Send uses html as the HTML body when it is not empty.
func (m *Mailgun) Send(ctx context.Context, to, subject, text, html string) error {
	msg := m.client.NewMessage(m.sender, subject, text, to)
	if html != "" {
		msg.SetHtml(html)
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, _, err := m.client.Send(ctx, msg)
	return err
}

// LogSender writes emails to the log instead of sending them. Used in
// development when Mailgun is not configured.
type LogSender struct {
	Logger *logrus.Logger
}

func (s LogSender) Send(_ context.Context, to, subject, text, _ string) error {
	s.Logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("email (not sent)\n" + text)
	return nil
}
