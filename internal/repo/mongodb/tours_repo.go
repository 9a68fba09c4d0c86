package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

// ToursRepo adds the tour aggregates on top of the generic collection.
type ToursRepo struct {
	*Collection
	reviews *mongo.Collection
}

func NewToursRepo(db *mongo.Database) *ToursRepo {
	return &ToursRepo{
		Collection: NewCollection(db, ToursCollection, TourQuery),
		reviews:    db.Collection(ReviewsCollection),
	}
}

// Stats groups well-rated tours by difficulty.
func (r *ToursRepo) Stats(ctx context.Context) ([]domain.TourStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$toUpper": "$difficulty"}},
			{Key: "numTours", Value: bson.M{"$sum": 1}},
			{Key: "numRatings", Value: bson.M{"$sum": "$ratingsQuantity"}},
			{Key: "avgRating", Value: bson.M{"$avg": "$ratingsAverage"}},
			{Key: "avgPrice", Value: bson.M{"$avg": "$price"}},
			{Key: "minPrice", Value: bson.M{"$min": "$price"}},
			{Key: "maxPrice", Value: bson.M{"$max": "$price"}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}
	stats := []domain.TourStats{}
	if err := r.Aggregate(ctx, pipeline, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// MonthlyPlan counts tour start dates per month of year.
func (r *ToursRepo) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lt": to}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.M{"$month": "$startDates"}},
			{Key: "numTourStarts", Value: bson.M{"$sum": 1}},
			{Key: "tours", Value: bson.M{"$push": "$name"}},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
	plan := []domain.MonthlyPlan{}
	if err := r.Aggregate(ctx, pipeline, &plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Within lists tours starting inside a circle around (lng, lat).
func (r *ToursRepo) Within(ctx context.Context, lng, lat, distance float64, unit domain.DistanceUnit) ([]bson.M, error) {
	radius := distance / unit.EarthRadius()
	q := query.Query{
		Filter: bson.M{"$and": bson.A{
			domain.VisibleTours(),
			bson.M{"startLocation": bson.M{
				"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{lng, lat}, radius}},
			}},
		}},
		Projection: bson.M{query.VersionField: 0},
	}
	return r.Find(ctx, q)
}

// Distances returns every tour with its distance from (lng, lat), nearest first.
func (r *ToursRepo) Distances(ctx context.Context, lng, lat float64, unit domain.DistanceUnit) ([]domain.TourDistance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.M{"type": "Point", "coordinates": bson.A{lng, lat}}},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: unit.FromMeters()},
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
	out := []domain.TourDistance{}
	if err := r.Aggregate(ctx, pipeline, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ToursRepo) BySlug(ctx context.Context, slug string, rels ...query.Relation) (bson.M, error) {
	return r.FindOne(ctx, bson.M{"slug": slug}, rels...)
}

// TourSummary is the subset of a tour needed to sell it.
type TourSummary struct {
	ID         bson.ObjectID `bson:"_id"`
	Name       string        `bson:"name"`
	Summary    string        `bson:"summary"`
	Price      float64       `bson:"price"`
	ImageCover string        `bson:"imageCover"`
	Slug       string        `bson:"slug"`
}

func (r *ToursRepo) Summary(ctx context.Context, id string) (*TourSummary, error) {
	doc, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal tour: %w", err)
	}
	var s TourSummary
	if err := bson.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode tour: %w", err)
	}
	return &s, nil
}

// RecalculateRatings recomputes a tour's rating average and count from its
// reviews. A tour without reviews falls back to the 4.5 default.
func (r *ToursRepo) RecalculateRatings(ctx context.Context, tourID bson.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cur, err := r.reviews.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.M{"$sum": 1}},
			{Key: "avgRating", Value: bson.M{"$avg": "$rating"}},
		}}},
	})
	if err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}
	var rows []domain.RatingSummary
	if err := cur.All(ctx, &rows); err != nil {
		return fmt.Errorf("decode ratings: %w", err)
	}

	set := bson.M{"ratingsQuantity": 0, "ratingsAverage": 4.5}
	if len(rows) > 0 {
		set = bson.M{
			"ratingsQuantity": rows[0].Quantity,
			"ratingsAverage":  domain.RoundRating(rows[0].Average),
		}
	}
	if _, err := r.coll.UpdateByID(ctx, tourID, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("update tour ratings: %w", err)
	}
	return nil
}
