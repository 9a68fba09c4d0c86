package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

type BookingsRepo struct {
	*Collection
	tours *Collection
}

func NewBookingsRepo(db *mongo.Database) *BookingsRepo {
	return &BookingsRepo{
		Collection: NewCollection(db, BookingsCollection, BookingQuery),
		tours:      NewCollection(db, ToursCollection, TourQuery),
	}
}

// ToursBookedBy lists the tours a user holds bookings for.
func (r *BookingsRepo) ToursBookedBy(ctx context.Context, userID bson.ObjectID) ([]bson.M, error) {
	bookings, err := r.Find(ctx, query.Query{
		Filter:     bson.M{"user": userID},
		Projection: bson.M{"tour": 1},
	})
	if err != nil {
		return nil, fmt.Errorf("find bookings: %w", err)
	}

	ids := bson.A{}
	for _, b := range bookings {
		if id, ok := b["tour"].(bson.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []bson.M{}, nil
	}

	return r.tours.Find(ctx, query.Query{
		Filter: bson.M{"$and": bson.A{
			domain.VisibleTours(),
			bson.M{"_id": bson.M{"$in": ids}},
		}},
		Sort:       bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		Projection: bson.M{query.VersionField: 0},
	})
}

// Record stores a paid booking. A booking carrying a checkout session is
// stored at most once per session; created reports whether this call
// inserted it.
func (r *BookingsRepo) Record(ctx context.Context, b *domain.Booking) (doc bson.M, created bool, err error) {
	raw, err := bson.Marshal(b)
	if err != nil {
		return nil, false, fmt.Errorf("marshal booking: %w", err)
	}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode booking: %w", err)
	}
	if b.SessionID == "" {
		doc, err = r.Insert(ctx, doc)
		return doc, err == nil, err
	}

	bySession := bson.M{domain.BookingFieldSessionID: b.SessionID}
	delete(doc, domain.BookingFieldSessionID)
	doc[query.VersionField] = 0

	upsertCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.coll.UpdateOne(upsertCtx, bySession, bson.M{"$setOnInsert": doc}, options.UpdateOne().SetUpsert(true))
	switch {
	case err == nil:
		created = res.UpsertedCount == 1
	case mongo.IsDuplicateKeyError(err):
		// Lost a race with a concurrent delivery of the same session.
	default:
		return nil, false, fmt.Errorf("record booking: %w", err)
	}

	stored, err := r.FindOne(ctx, bySession)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}
