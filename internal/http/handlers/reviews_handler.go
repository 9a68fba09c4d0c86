package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/handlers/factory"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/query"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/pkg/events"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

// RatingsUpdater recomputes a tour's rating aggregate after its reviews change.
type RatingsUpdater interface {
	RecalculateRatings(ctx context.Context, tourID bson.ObjectID) error
}

type ReviewsHandler struct {
	crud    *factory.Handler[domain.Review]
	ratings RatingsUpdater
	events  events.Publisher
	guard   *middleware.Auth
	errs    *response.Translator
}

func NewReviewsHandler(
	store factory.Store,
	validate *validator.Validate,
	ratings RatingsUpdater,
	publisher events.Publisher,
	guard *middleware.Auth,
	errs *response.Translator,
) *ReviewsHandler {
	h := &ReviewsHandler{ratings: ratings, events: publisher, guard: guard, errs: errs}
	h.crud = factory.New(store, validate, factory.Options[domain.Review]{
		Query:        mongodb.ReviewQuery,
		Populate:     []query.Relation{mongodb.ReviewUser},
		ListPopulate: []query.Relation{mongodb.ReviewUser},
		Scope:        tourScope,
		Prepare:      prepareReview,
		OnChange:     h.recalculate,
		OnCreate:     h.posted,
	})
	return h
}

// Routes serves both /reviews and /tours/{tourId}/reviews.
func (h *ReviewsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	wrap := h.errs.Wrap

	r.Use(h.guard.Protect)
	r.Get("/", wrap(h.crud.List))
	r.With(h.guard.RestrictTo(domain.RoleSet(domain.RoleUser))).Post("/", wrap(h.crud.Create))
	r.Get("/{id}", wrap(h.crud.Get))

	owners := h.guard.RestrictTo(domain.RoleSet(domain.RoleUser, domain.RoleAdmin))
	r.With(owners).Patch("/{id}", wrap(h.crud.Update))
	r.With(owners).Delete("/{id}", wrap(h.crud.Delete))
	return r
}

// tourScope narrows lists to the tour named in the route, if any.
func tourScope(r *http.Request) (bson.M, error) {
	raw := chi.URLParam(r, "tourId")
	if raw == "" {
		return nil, nil
	}
	id, err := mongodb.ParseID(raw)
	if err != nil {
		return nil, err
	}
	return bson.M{"tour": id}, nil
}

// prepareReview fills tour and author from the route and caller when the
// body leaves them out.
func prepareReview(r *http.Request, review *domain.Review) error {
	if review.Tour.IsZero() {
		if raw := chi.URLParam(r, "tourId"); raw != "" {
			id, err := mongodb.ParseID(raw)
			if err != nil {
				return err
			}
			review.Tour = id
		}
	}
	if review.User.IsZero() {
		if u, ok := middleware.CurrentUser(r.Context()); ok {
			review.User = u.ID
		}
	}
	return nil
}

func (h *ReviewsHandler) recalculate(ctx context.Context, doc bson.M) {
	tourID, ok := doc["tour"].(bson.ObjectID)
	if !ok || h.ratings == nil {
		return
	}
	if err := h.ratings.RecalculateRatings(ctx, tourID); err != nil {
		logger.ErrorContext(ctx, "failed to recalculate ratings", "tour_id", tourID.Hex(), "error", err)
	}
}

func (h *ReviewsHandler) posted(ctx context.Context, doc bson.M) {
	if h.events == nil {
		return
	}
	ev := events.ReviewPostedEvent{}
	if id, ok := doc["_id"].(bson.ObjectID); ok {
		ev.ReviewID = id.Hex()
	}
	if id, ok := doc["tour"].(bson.ObjectID); ok {
		ev.TourID = id.Hex()
	}
	if id, ok := doc["user"].(bson.ObjectID); ok {
		ev.UserID = id.Hex()
	}
	if rating, ok := doc["rating"].(float64); ok {
		ev.Rating = rating
	}
	if err := h.events.Publish(ctx, events.ReviewPosted, ev); err != nil {
		logger.WarnContext(ctx, "failed to publish event", "subject", events.ReviewPosted, "error", err)
	}
}
