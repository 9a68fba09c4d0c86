// Package notify turns domain events into customer emails.
package notify

import (
	"context"
	"strings"

	"github.com/diagnosis/luxsuv-tours/internal/platform/mailer"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

// QueueGroup lets several notifier replicas share the work.
const QueueGroup = "notifier"

type Notifier struct {
	mail    mailer.Service
	baseURL string
}

func New(mail mailer.Service, frontendURL string) *Notifier {
	return &Notifier{mail: mail, baseURL: strings.TrimRight(frontendURL, "/")}
}

// Register subscribes the notifier to every event it handles.
func (n *Notifier) Register(ctx context.Context, sub events.Subscriber) error {
	handlers := map[string]func(context.Context, *events.Message) error{
		events.UserSignedUp:   n.SignedUp,
		events.BookingCreated: n.BookingCreated,
	}
	for subject, handle := range handlers {
		err := sub.QueueSubscribe(subject, QueueGroup, func(msg *events.Message) {
			if err := handle(ctx, msg); err != nil {
				logger.ErrorContext(ctx, "notification failed", "subject", msg.Subject, "error", err)
			}
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "Subscribed", "subject", subject, "queue", QueueGroup)
	}
	return nil
}

func (n *Notifier) SignedUp(ctx context.Context, msg *events.Message) error {
	var ev events.UserSignedUpEvent
	if err := msg.Decode(&ev); err != nil {
		return err
	}
	_, err := n.mail.Send(ctx, mailer.Welcome(ev.Email, ev.Name, n.baseURL+"/me"))
	return err
}

func (n *Notifier) BookingCreated(ctx context.Context, msg *events.Message) error {
	var ev events.BookingCreatedEvent
	if err := msg.Decode(&ev); err != nil {
		return err
	}
	if ev.UserEmail == "" {
		logger.WarnContext(ctx, "booking event without email", "booking_id", ev.BookingID)
		return nil
	}
	name := ev.TourName
	if name == "" {
		name = "your tour"
	}
	_, err := n.mail.Send(ctx, mailer.BookingConfirmation(ev.UserEmail, ev.UserName, name, ev.Price, n.baseURL+"/my-tours"))
	return err
}
