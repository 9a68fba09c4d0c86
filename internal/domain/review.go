package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Review struct {
	ID        bson.ObjectID `json:"_id" bson:"_id,omitempty" patch:"-"`
	Review    string        `json:"review" bson:"review" validate:"required,max=2000"`
	Rating    float64       `json:"rating" bson:"rating" validate:"required,gte=1,lte=5"`
	Tour      bson.ObjectID `json:"tour" bson:"tour" validate:"required" patch:"-"`
	User      bson.ObjectID `json:"user" bson:"user" validate:"required" patch:"-"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt" patch:"-"`
	Version   int           `json:"-" bson:"__v"`
}

func (r *Review) SetDefaults(now time.Time) {
	r.CreatedAt = now
}

func (r *Review) Normalize() {
	r.Review = strings.TrimSpace(r.Review)
}

// RatingSummary is the aggregate written back onto a tour.
type RatingSummary struct {
	Quantity int     `bson:"nRating"`
	Average  float64 `bson:"avgRating"`
}
