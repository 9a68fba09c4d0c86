package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/handlers/factory"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/query"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
	pkgmw "github.com/diagnosis/luxsuv-tours/pkg/middleware"
)

// maxWebhookBody bounds the signed payload read from the processor.
const maxWebhookBody = 64 << 10

type CheckoutService interface {
	CreateSession(ctx context.Context, user *domain.User, tourID string) (*domain.CheckoutSession, error)
	Complete(ctx context.Context, payload []byte, signature string) (bson.M, error)
}

// BookingStore is the booking persistence beyond generic CRUD.
type BookingStore interface {
	factory.Store
	ToursBookedBy(ctx context.Context, userID bson.ObjectID) ([]bson.M, error)
}

type BookingsHandler struct {
	bookings    BookingStore
	checkout    CheckoutService
	crud        *factory.Handler[domain.Booking]
	idempotency pkgmw.IdempotencyStore
	guard       *middleware.Auth
	errs        *response.Translator
}

func NewBookingsHandler(
	bookings BookingStore,
	checkout CheckoutService,
	validate *validator.Validate,
	idempotency pkgmw.IdempotencyStore,
	guard *middleware.Auth,
	errs *response.Translator,
) *BookingsHandler {
	return &BookingsHandler{
		bookings: bookings,
		checkout: checkout,
		crud: factory.New(bookings, validate, factory.Options[domain.Booking]{
			Query:        mongodb.BookingQuery,
			Populate:     []query.Relation{mongodb.BookingTour, mongodb.BookingUser},
			ListPopulate: []query.Relation{mongodb.BookingTour, mongodb.BookingUser},
		}),
		idempotency: idempotency,
		guard:       guard,
		errs:        errs,
	}
}

func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	wrap := h.errs.Wrap

	r.Use(h.guard.Protect)
	r.Get("/checkout-session/{tourID}", wrap(h.checkoutSession))
	r.Get("/my-tours", wrap(h.myTours))

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RestrictTo(domain.RoleSet(domain.RoleAdmin, domain.RoleLeadGuide)))
		r.Get("/", wrap(h.crud.List))
		create := http.Handler(wrap(h.crud.Create))
		if h.idempotency != nil {
			create = pkgmw.Idempotency(h.idempotency)(create)
		}
		r.Method(http.MethodPost, "/", create)
		r.Get("/{id}", wrap(h.crud.Get))
		r.Patch("/{id}", wrap(h.crud.Update))
		r.Delete("/{id}", wrap(h.crud.Delete))
	})
	return r
}

func (h *BookingsHandler) checkoutSession(w http.ResponseWriter, r *http.Request) error {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return errNoUser
	}
	session, err := h.checkout.CreateSession(r.Context(), user, chi.URLParam(r, "tourID"))
	if err != nil {
		return err
	}
	response.JSON(w, r, http.StatusOK, response.Envelope{
		Status: response.StatusSuccess,
		Data:   map[string]any{"session": session},
	})
	return nil
}

func (h *BookingsHandler) myTours(w http.ResponseWriter, r *http.Request) error {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return errNoUser
	}
	tours, err := h.bookings.ToursBookedBy(r.Context(), user.ID)
	if err != nil {
		return err
	}
	response.Docs(w, r, tours)
	return nil
}

// Webhook receives checkout events. It must be mounted outside the JSON
// body limit and before any body parsing: the signature covers the raw bytes.
func (h *BookingsHandler) Webhook(w http.ResponseWriter, r *http.Request) error {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		return err
	}
	doc, err := h.checkout.Complete(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		return err
	}
	if doc != nil {
		logger.InfoContext(r.Context(), "booking recorded from checkout", "booking_id", doc["_id"])
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]bool{"received": true})
	return nil
}
