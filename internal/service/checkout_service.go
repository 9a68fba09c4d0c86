package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	qs "github.com/google/go-querystring/query"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/platform/payments"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

type TourCatalog interface {
	Summary(ctx context.Context, id string) (*mongodb.TourSummary, error)
}

type BookingRecorder interface {
	// Record stores b and reports whether it was new. A second record for
	// the same checkout session returns the stored booking.
	Record(ctx context.Context, b *domain.Booking) (doc bson.M, created bool, err error)
}

type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type Checkout struct {
	tours    TourCatalog
	bookings BookingRecorder
	users    UserDirectory
	gateway  payments.Gateway
	events   events.Publisher
	baseURL  string
	now      func() time.Time
}

func NewCheckout(tours TourCatalog, bookings BookingRecorder, users UserDirectory, gateway payments.Gateway, publisher events.Publisher, baseURL string) *Checkout {
	return &Checkout{
		tours:    tours,
		bookings: bookings,
		users:    users,
		gateway:  gateway,
		events:   publisher,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type successQuery struct {
	Alert string `url:"alert"`
	Tour  string `url:"tour,omitempty"`
}

// SuccessURL is where the processor sends the customer after paying.
func (c *Checkout) SuccessURL(slug string) (string, error) {
	v, err := qs.Values(successQuery{Alert: "booking", Tour: slug})
	if err != nil {
		return "", fmt.Errorf("encode success url: %w", err)
	}
	return c.baseURL + "/my-tours?" + v.Encode(), nil
}

// CreateSession opens a hosted checkout for one tour.
func (c *Checkout) CreateSession(ctx context.Context, user *domain.User, tourID string) (*domain.CheckoutSession, error) {
	tour, err := c.tours.Summary(ctx, tourID)
	if err != nil {
		return nil, err
	}
	success, err := c.SuccessURL(tour.Slug)
	if err != nil {
		return nil, err
	}

	image := tour.ImageCover
	if image != "" && !strings.HasPrefix(image, "http") {
		image = c.baseURL + "/img/tours/" + image
	}
	sess, err := c.gateway.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		TourID:        tour.ID.Hex(),
		TourName:      tour.Name + " Tour",
		Summary:       tour.Summary,
		ImageURL:      image,
		Price:         tour.Price,
		CustomerEmail: user.Email,
		SuccessURL:    success,
		CancelURL:     c.baseURL + "/tour/" + tour.Slug,
	})
	if err != nil {
		return nil, domain.Wrap(domain.KindPaymentFailed, "Could not start the checkout. Please try again later.", err)
	}

	c.publish(ctx, events.CheckoutSessionCreated, events.CheckoutSessionCreatedEvent{
		SessionID: sess.ID,
		TourID:    tour.ID.Hex(),
		UserID:    user.IDHex(),
		Amount:    payments.UnitAmount(tour.Price),
		CreatedAt: c.now(),
	})
	return sess, nil
}

// Complete records the booking for a paid checkout reported by the webhook.
// It returns nil, nil for events that are not completed checkouts.
func (c *Checkout) Complete(ctx context.Context, payload []byte, signature string) (bson.M, error) {
	done, err := c.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return nil, domain.Wrap(domain.KindValidation, "Webhook error: "+err.Error(), err)
	}
	if done == nil {
		return nil, nil
	}

	tourID, err := mongodb.ParseID(done.TourID)
	if err != nil {
		return nil, err
	}
	user, err := c.users.FindByEmail(ctx, done.CustomerEmail)
	if err != nil {
		return nil, fmt.Errorf("find customer %s: %w", done.CustomerEmail, err)
	}

	booking := &domain.Booking{Tour: tourID, User: user.ID, Price: done.Price(), SessionID: done.SessionID}
	booking.SetDefaults(c.now())
	doc, created, err := c.bookings.Record(ctx, booking)
	if err != nil {
		return nil, err
	}
	if !created {
		logger.InfoContext(ctx, "checkout already recorded", "session_id", done.SessionID)
		return doc, nil
	}

	tourName := ""
	if tour, err := c.tours.Summary(ctx, done.TourID); err == nil {
		tourName = tour.Name
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.WarnContext(ctx, "tour lookup after checkout failed", "tour_id", done.TourID, "error", err)
	}

	bookingID := ""
	if id, ok := doc["_id"].(bson.ObjectID); ok {
		bookingID = id.Hex()
	}
	c.publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: bookingID,
		TourID:    done.TourID,
		TourName:  tourName,
		UserID:    user.IDHex(),
		UserEmail: user.Email,
		UserName:  user.Name,
		Price:     booking.Price,
		CreatedAt: booking.CreatedAt,
	})
	return doc, nil
}

func (c *Checkout) publish(ctx context.Context, subject string, data any) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}
