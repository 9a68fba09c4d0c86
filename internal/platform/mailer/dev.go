package mailer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

// DevMailer logs messages instead of sending them and keeps the most
// recent ones for inspection.
type DevMailer struct {
	mu   sync.Mutex
	sent []Message
}

func NewDevMailer() *DevMailer { return &DevMailer{} }

func (d *DevMailer) Send(ctx context.Context, msg Message) (string, error) {
	id := uuid.NewString()
	logger.InfoContext(ctx, "dev mailer: email not sent",
		"message_id", id,
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"text", msg.Text,
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	if len(d.sent) > 50 {
		d.sent = d.sent[len(d.sent)-50:]
	}
	return id, nil
}

// Sent returns a copy of the messages logged so far.
func (d *DevMailer) Sent() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Message(nil), d.sent...)
}
