package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Booking is a paid reservation. SessionID links bookings made through
// checkout to their payment session.
type Booking struct {
	ID        bson.ObjectID `json:"_id" bson:"_id,omitempty" patch:"-"`
	Tour      bson.ObjectID `json:"tour" bson:"tour" validate:"required"`
	User      bson.ObjectID `json:"user" bson:"user" validate:"required"`
	Price     float64       `json:"price" bson:"price" validate:"required,gt=0"`
	Paid      *bool         `json:"paid" bson:"paid"`
	SessionID string        `json:"sessionId,omitempty" bson:"sessionId,omitempty" patch:"-"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt" patch:"-"`
	Version   int           `json:"-" bson:"__v"`
}

// BookingFieldSessionID is the stored name of Booking.SessionID.
const BookingFieldSessionID = "sessionId"

func (b *Booking) SetDefaults(now time.Time) {
	if b.Paid == nil {
		paid := true
		b.Paid = &paid
	}
	b.CreatedAt = now
}

// CheckoutSession is what the client needs to redirect to the processor.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout is a paid session reported by the processor webhook.
type CompletedCheckout struct {
	SessionID     string
	TourID        string
	CustomerEmail string
	AmountTotal   int64
}

// Price returns the paid amount in major currency units.
func (c CompletedCheckout) Price() float64 {
	return float64(c.AmountTotal) / 100
}
