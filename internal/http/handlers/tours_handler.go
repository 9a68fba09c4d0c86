package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/handlers/factory"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/platform/media"
	"github.com/diagnosis/luxsuv-tours/internal/query"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
)

const maxTourImages = 3

// TourStore is the tour persistence the handlers need beyond generic CRUD.
type TourStore interface {
	factory.Store
	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error)
	Within(ctx context.Context, lng, lat, distance float64, unit domain.DistanceUnit) ([]bson.M, error)
	Distances(ctx context.Context, lng, lat float64, unit domain.DistanceUnit) ([]domain.TourDistance, error)
	BySlug(ctx context.Context, slug string, rels ...query.Relation) (bson.M, error)
}

type ToursHandler struct {
	tours   TourStore
	crud    *factory.Handler[domain.Tour]
	images  media.Uploader
	reviews http.Handler
	guard   *middleware.Auth
	errs    *response.Translator
	now     func() time.Time
}

func NewToursHandler(
	tours TourStore,
	validate *validator.Validate,
	images media.Uploader,
	reviews http.Handler,
	guard *middleware.Auth,
	errs *response.Translator,
) *ToursHandler {
	return &ToursHandler{
		tours: tours,
		crud: factory.New(tours, validate, factory.Options[domain.Tour]{
			Query:    mongodb.TourQuery,
			Populate: []query.Relation{mongodb.TourGuides, mongodb.TourReviews},
		}),
		images:  images,
		reviews: reviews,
		guard:   guard,
		errs:    errs,
		now:     time.Now,
	}
}

func (h *ToursHandler) Routes() chi.Router {
	r := chi.NewRouter()
	wrap := h.errs.Wrap
	staff := h.guard.RestrictTo(domain.RoleSet(domain.RoleAdmin, domain.RoleLeadGuide))

	if h.reviews != nil {
		r.Mount("/{tourId}/reviews", h.reviews)
	}

	r.With(aliasTopTours).Get("/top-5-cheap", wrap(h.crud.List))
	r.Get("/tour-stats", wrap(h.stats))
	r.With(h.guard.Protect, h.guard.RestrictTo(domain.RoleSet(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide))).
		Get("/monthly-plan/{year}", wrap(h.monthlyPlan))
	r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", wrap(h.within))
	r.Get("/distances/{latlng}/unit/{unit}", wrap(h.distances))
	r.Get("/slug/{slug}", wrap(h.bySlug))

	r.Get("/", wrap(h.crud.List))
	r.Get("/{id}", wrap(h.crud.Get))
	r.With(h.guard.Protect, staff).Post("/", wrap(h.crud.Create))
	r.With(h.guard.Protect, staff).Patch("/{id}", wrap(h.update))
	r.With(h.guard.Protect, staff).Delete("/{id}", wrap(h.crud.Delete))
	return r
}

// aliasTopTours rewrites the query to the five best rated, cheapest tours.
func aliasTopTours(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		r.URL.RawQuery = q.Encode()
		next.ServeHTTP(w, r)
	})
}

func (h *ToursHandler) stats(w http.ResponseWriter, r *http.Request) error {
	stats, err := h.tours.Stats(r.Context())
	if err != nil {
		return err
	}
	response.JSON(w, r, http.StatusOK, response.Envelope{
		Status: response.StatusSuccess,
		Data:   map[string]any{"stats": stats},
	})
	return nil
}

func (h *ToursHandler) monthlyPlan(w http.ResponseWriter, r *http.Request) error {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 {
		return domain.Errorf(domain.KindValidation, "Invalid year: %s.", chi.URLParam(r, "year"))
	}
	plan, err := h.tours.MonthlyPlan(r.Context(), year)
	if err != nil {
		return err
	}
	response.JSON(w, r, http.StatusOK, response.Envelope{
		Status: response.StatusSuccess,
		Data:   map[string]any{"plan": plan},
	})
	return nil
}

// parseCenter reads a "lat,lng" route parameter.
func parseCenter(raw string) (lat, lng float64, err error) {
	latS, lngS, ok := strings.Cut(raw, ",")
	if ok {
		lat, err = strconv.ParseFloat(strings.TrimSpace(latS), 64)
		if err == nil {
			lng, err = strconv.ParseFloat(strings.TrimSpace(lngS), 64)
		}
	}
	if !ok || err != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, domain.E(domain.KindValidation, "Please provide latitude and longitude in the format lat,lng.")
	}
	return lat, lng, nil
}

func parseUnit(raw string) (domain.DistanceUnit, error) {
	unit, ok := domain.ParseDistanceUnit(raw)
	if !ok {
		return "", domain.Errorf(domain.KindValidation, "Unit must be mi or km, got %s.", raw)
	}
	return unit, nil
}

func (h *ToursHandler) within(w http.ResponseWriter, r *http.Request) error {
	distance, err := strconv.ParseFloat(chi.URLParam(r, "distance"), 64)
	if err != nil || distance <= 0 {
		return domain.Errorf(domain.KindValidation, "Invalid distance: %s.", chi.URLParam(r, "distance"))
	}
	lat, lng, err := parseCenter(chi.URLParam(r, "latlng"))
	if err != nil {
		return err
	}
	unit, err := parseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		return err
	}
	tours, err := h.tours.Within(r.Context(), lng, lat, distance, unit)
	if err != nil {
		return err
	}
	response.Docs(w, r, tours)
	return nil
}

func (h *ToursHandler) distances(w http.ResponseWriter, r *http.Request) error {
	lat, lng, err := parseCenter(chi.URLParam(r, "latlng"))
	if err != nil {
		return err
	}
	unit, err := parseUnit(chi.URLParam(r, "unit"))
	if err != nil {
		return err
	}
	distances, err := h.tours.Distances(r.Context(), lng, lat, unit)
	if err != nil {
		return err
	}
	response.JSON(w, r, http.StatusOK, response.Envelope{
		Status: response.StatusSuccess,
		Data:   map[string]any{"data": distances},
	})
	return nil
}

func (h *ToursHandler) bySlug(w http.ResponseWriter, r *http.Request) error {
	tour, err := h.tours.BySlug(r.Context(), chi.URLParam(r, "slug"), mongodb.TourGuides, mongodb.TourReviews)
	if err != nil {
		return err
	}
	response.Doc(w, r, http.StatusOK, tour)
	return nil
}

// update accepts JSON or a multipart form carrying imageCover and up to three
// images. Uploaded files are stored first and their URLs patched in with
// the remaining form fields.
func (h *ToursHandler) update(w http.ResponseWriter, r *http.Request) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return h.crud.Update(w, r)
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		return domain.Wrap(domain.KindValidation, "Invalid multipart body", err)
	}
	defer r.MultipartForm.RemoveAll()

	body := map[string]any{}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			body[key] = formValue(values[len(values)-1])
		}
	}
	if err := h.uploadImages(r.Context(), chi.URLParam(r, "id"), r.MultipartForm.File, body); err != nil {
		return err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode tour update: %w", err)
	}
	r2 := r.Clone(r.Context())
	r2.Body = io.NopCloser(bytes.NewReader(raw))
	r2.Header.Set("Content-Type", "application/json")
	return h.crud.Update(w, r2)
}

// formValue keeps numbers and booleans typed so they decode into the tour.
func formValue(v string) any {
	var x any
	if err := json.Unmarshal([]byte(v), &x); err == nil {
		switch x.(type) {
		case float64, bool:
			return x
		}
	}
	return v
}

func (h *ToursHandler) uploadImages(ctx context.Context, id string, files map[string][]*multipart.FileHeader, body map[string]any) error {
	covers, images := files["imageCover"], files["images"]
	if len(covers) == 0 && len(images) == 0 {
		return nil
	}
	if len(covers) > 1 || len(images) > maxTourImages {
		return domain.Errorf(domain.KindValidation, "Upload at most one imageCover and %d images.", maxTourImages)
	}
	for _, fh := range append(append([]*multipart.FileHeader{}, covers...), images...) {
		if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
			return domain.E(domain.KindValidation, "Not an image! Please upload only images.")
		}
	}

	stamp := h.now().UnixMilli()
	g, gctx := errgroup.WithContext(ctx)

	var cover string
	if len(covers) == 1 {
		g.Go(func() error {
			loc, err := h.store(gctx, covers[0], fmt.Sprintf("tour-%s-%d-cover.jpeg", id, stamp))
			cover = loc
			return err
		})
	}
	urls := make([]string, len(images))
	for i, fh := range images {
		g.Go(func() error {
			loc, err := h.store(gctx, fh, fmt.Sprintf("tour-%s-%d-%d.jpeg", id, stamp, i+1))
			urls[i] = loc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if cover != "" {
		body["imageCover"] = cover
	}
	if len(urls) > 0 {
		body["images"] = urls
	}
	return nil
}

func (h *ToursHandler) store(ctx context.Context, fh *multipart.FileHeader, name string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return h.images.Upload(ctx, f, name)
}
