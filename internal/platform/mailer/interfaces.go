package mailer

import (
	"context"
	"fmt"

	"github.com/diagnosis/luxsuv-tours/pkg/config"
)

// Message is one outbound email. Text is required; HTML is optional.
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string

	// Tags label the message in the provider's analytics when it has them.
	Tags []string
}

// Service sends email and returns the provider message id when there is one.
type Service interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// New picks the provider named by cfg.Provider: dev, smtp or mailersend.
func New(cfg config.EmailConfig) (Service, error) {
	switch cfg.Provider {
	case "", "dev":
		return NewDevMailer(), nil
	case "smtp":
		return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromName, cfg.From, cfg.SMTPUser, cfg.SMTPPass), nil
	case "mailersend":
		return NewMailerSend(cfg)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
