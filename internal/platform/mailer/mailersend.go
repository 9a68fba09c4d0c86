package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/diagnosis/luxsuv-tours/pkg/config"
)

const mailerSendTimeout = 10 * time.Second

// MailerSend delivers through the MailerSend HTTP API.
type MailerSend struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSend(cfg config.EmailConfig) (*MailerSend, error) {
	key, from := strings.TrimSpace(cfg.MailerSendKey), strings.TrimSpace(cfg.From)
	if key == "" || from == "" {
		return nil, fmt.Errorf("mailersend provider needs MAILERSEND_API_KEY and EMAIL_FROM")
	}
	return &MailerSend{
		client: mailersend.NewMailersend(key),
		from:   mailersend.From{Name: cfg.FromName, Email: from},
	}, nil
}

func (m *MailerSend) compose(msg Message) (*mailersend.Message, error) {
	to := strings.TrimSpace(msg.ToEmail)
	if to == "" {
		return nil, fmt.Errorf("empty recipient email")
	}
	if strings.TrimSpace(msg.Text) == "" && strings.TrimSpace(msg.HTML) == "" {
		return nil, fmt.Errorf("message %q has no body", msg.Subject)
	}

	email := m.client.Email.NewMessage()
	email.SetFrom(m.from)
	email.SetRecipients([]mailersend.Recipient{{Name: msg.ToName, Email: to}})
	email.SetSubject(msg.Subject)
	if msg.Text != "" {
		email.SetText(msg.Text)
	}
	if msg.HTML != "" {
		email.SetHTML(msg.HTML)
	}
	if len(msg.Tags) > 0 {
		email.SetTags(msg.Tags)
	}
	return email, nil
}

// Send returns the X-Message-Id MailerSend assigns to the accepted message.
func (m *MailerSend) Send(ctx context.Context, msg Message) (string, error) {
	email, err := m.compose(msg)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, mailerSendTimeout)
	defer cancel()

	res, err := m.client.Email.Send(ctx, email)
	if err != nil {
		return "", fmt.Errorf("mailersend send: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("mailersend send: unexpected status %d", res.StatusCode)
	}
	return res.Header.Get("X-Message-Id"), nil
}
