package mongodb

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

// Per-resource query settings shared by repositories and list handlers.
var (
	TourQuery = query.Options{
		Scope:      domain.VisibleTours(),
		Repeatable: domain.TourRepeatableFields,
		Fields: map[string]query.Kind{
			"name":       query.KindString,
			"slug":       query.KindString,
			"difficulty": query.KindString,
			"startDates": query.KindDate,
			"guides":     query.KindObjectID,
		},
	}
	UserQuery = query.Options{
		Scope:  domain.ActiveUsers(),
		Hidden: domain.UserHiddenFields,
		Fields: map[string]query.Kind{"name": query.KindString, "email": query.KindString, "role": query.KindString},
	}
	ReviewQuery = query.Options{
		Fields: map[string]query.Kind{"tour": query.KindObjectID, "user": query.KindObjectID, "review": query.KindString},
	}
	BookingQuery = query.Options{
		Fields: map[string]query.Kind{"tour": query.KindObjectID, "user": query.KindObjectID, "paid": query.KindBool},
	}
)

// Relations resolved on reads.
var (
	TourGuides = query.Ref("guides", UsersCollection,
		bson.M{"name": 1, "email": 1, "photo": 1, "role": 1}).WithScope(domain.ActiveUsers())
	TourReviews = query.Virtual("reviews", ReviewsCollection, "tour")
	ReviewUser  = query.Ref("user", UsersCollection, bson.M{"name": 1, "photo": 1}).WithScope(domain.ActiveUsers())
	BookingTour = query.Ref("tour", ToursCollection, bson.M{"name": 1})
	BookingUser = query.Ref("user", UsersCollection, bson.M{"name": 1, "email": 1})
)

func NewUsersCollection(db *mongo.Database) *Collection {
	return NewCollection(db, UsersCollection, UserQuery)
}

func NewReviewsCollection(db *mongo.Database) *Collection {
	return NewCollection(db, ReviewsCollection, ReviewQuery)
}
