package domain

import (
	"math"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// TourRepeatableFields may appear more than once in a list query and then
// match any of the given values.
var TourRepeatableFields = []string{
	"duration", "ratingsQuantity", "ratingsAverage", "maxGroupSize", "difficulty", "price",
}

// VisibleTours is the implicit filter applied to every tour query.
func VisibleTours() bson.M {
	return bson.M{"secretTour": bson.M{"$ne": true}}
}

// Location is a GeoJSON point with descriptive fields.
type Location struct {
	Type        string    `json:"type" bson:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates" validate:"omitempty,len=2,dive,gte=-180,lte=180"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty"`
}

type Tour struct {
	ID              bson.ObjectID   `json:"_id" bson:"_id,omitempty" patch:"-"`
	Name            string          `json:"name" bson:"name" validate:"required,min=5,max=40"`
	Slug            string          `json:"slug" bson:"slug" patch:"-"`
	Duration        int             `json:"duration" bson:"duration" validate:"required,gt=0"`
	MaxGroupSize    int             `json:"maxGroupSize" bson:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      Difficulty      `json:"difficulty" bson:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64         `json:"ratingsAverage" bson:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int             `json:"ratingsQuantity" bson:"ratingsQuantity" validate:"gte=0"`
	Price           float64         `json:"price" bson:"price" validate:"required,gt=0"`
	PriceDiscount   float64         `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty" validate:"gte=0"`
	Summary         string          `json:"summary" bson:"summary" validate:"required"`
	Description     string          `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string          `json:"imageCover" bson:"imageCover" validate:"required"`
	Images          []string        `json:"images" bson:"images"`
	StartDates      []time.Time     `json:"startDates" bson:"startDates"`
	SecretTour      bool            `json:"secretTour" bson:"secretTour"`
	StartLocation   *Location       `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []Location      `json:"locations,omitempty" bson:"locations,omitempty" validate:"dive"`
	Guides          []bson.ObjectID `json:"guides" bson:"guides"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt" patch:"-"`
	Version         int             `json:"-" bson:"__v"`
}

func (t *Tour) SetDefaults(now time.Time) {
	if t.RatingsAverage == 0 {
		t.RatingsAverage = 4.5
	}
	if t.Images == nil {
		t.Images = []string{}
	}
	if t.StartDates == nil {
		t.StartDates = []time.Time{}
	}
	if t.Guides == nil {
		t.Guides = []bson.ObjectID{}
	}
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	t.Slug = Slugify(t.Name)
	t.CreatedAt = now
}

func (t *Tour) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.RatingsAverage = RoundRating(t.RatingsAverage)
}

// Check enforces rules spanning more than one field.
func (t *Tour) Check() error {
	if t.PriceDiscount != 0 && t.PriceDiscount >= t.Price {
		return Errorf(KindValidation, "Discount price (%v) should be below the regular price", t.PriceDiscount)
	}
	return nil
}

// RoundRating keeps one decimal place: 4.666 -> 4.7.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// TourStats is one row of the difficulty breakdown.
type TourStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

// MonthlyPlan lists tours starting in one month.
type MonthlyPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

// TourDistance is a tour name with its distance from a point.
type TourDistance struct {
	ID       bson.ObjectID `json:"_id" bson:"_id"`
	Name     string        `json:"name" bson:"name"`
	Distance float64       `json:"distance" bson:"distance"`
}

// DistanceUnit is mi or km.
type DistanceUnit string

const (
	UnitMiles      DistanceUnit = "mi"
	UnitKilometers DistanceUnit = "km"
)

// EarthRadius returns the sphere radius used for $centerSphere queries.
func (u DistanceUnit) EarthRadius() float64 {
	if u == UnitMiles {
		return 3963.2
	}
	return 6378.1
}

// FromMeters returns the multiplier converting $geoNear meters into u.
func (u DistanceUnit) FromMeters() float64 {
	if u == UnitMiles {
		return 0.000621371
	}
	return 0.001
}

func ParseDistanceUnit(s string) (DistanceUnit, bool) {
	switch DistanceUnit(s) {
	case UnitMiles, UnitKilometers:
		return DistanceUnit(s), true
	default:
		return "", false
	}
}
