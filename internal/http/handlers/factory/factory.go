// Package factory builds list/get/create/update/delete handlers for any
// document resource. Handlers perform no authorization; protect the routes
// upstream.
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/query"
)

// Store is the document persistence a handler set needs.
type Store interface {
	Find(ctx context.Context, q query.Query, rels ...query.Relation) ([]bson.M, error)
	FindByID(ctx context.Context, id string, rels ...query.Relation) (bson.M, error)
	Insert(ctx context.Context, doc bson.M) (bson.M, error)
	UpdateByID(ctx context.Context, id string, set bson.M) (bson.M, error)
	DeleteByID(ctx context.Context, id string) (bson.M, error)
}

type Options[T any] struct {
	Query query.Options
	// Populate is resolved on Get; ListPopulate on List.
	Populate     []query.Relation
	ListPopulate []query.Relation
	// Scope returns the ambient filter for List, e.g. a parent id from the route.
	Scope func(r *http.Request) (bson.M, error)
	// Prepare fills a new document from the route or the caller before validation.
	Prepare func(r *http.Request, doc *T) error
	// SoftDelete names a boolean field cleared instead of removing the document.
	SoftDelete string
	// OnChange runs after a successful create, update or delete.
	OnChange func(ctx context.Context, doc bson.M)
	// OnCreate runs after OnChange for newly inserted documents only.
	OnCreate func(ctx context.Context, doc bson.M)
	// IDParam is the route parameter holding the document id. Defaults to "id".
	IDParam string
}

type Handler[T any] struct {
	store    Store
	validate *validator.Validate
	opts     Options[T]
	fields   map[string]field
	now      func() time.Time
}

func New[T any](store Store, validate *validator.Validate, opts Options[T]) *Handler[T] {
	if opts.IDParam == "" {
		opts.IDParam = "id"
	}
	return &Handler[T]{
		store:    store,
		validate: validate,
		opts:     opts,
		fields:   updatableFields(reflect.TypeFor[T]()),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Optional behaviours a resource type may implement on its pointer.
type (
	normalizer interface{ Normalize() }
	defaulter  interface{ SetDefaults(now time.Time) }
	checker    interface{ Check() error }
)

func (h *Handler[T]) List(w http.ResponseWriter, r *http.Request) error {
	var ambient bson.M
	if h.opts.Scope != nil {
		var err error
		if ambient, err = h.opts.Scope(r); err != nil {
			return err
		}
	}
	q, err := query.Build(r.URL.Query(), h.opts.Query, ambient)
	if err != nil {
		return err
	}
	docs, err := h.store.Find(r.Context(), q, h.opts.ListPopulate...)
	if err != nil {
		return err
	}
	response.Docs(w, r, docs)
	return nil
}

func (h *Handler[T]) Get(w http.ResponseWriter, r *http.Request) error {
	doc, err := h.store.FindByID(r.Context(), chi.URLParam(r, h.opts.IDParam), h.opts.Populate...)
	if err != nil {
		return err
	}
	response.Doc(w, r, http.StatusOK, doc)
	return nil
}

func (h *Handler[T]) Create(w http.ResponseWriter, r *http.Request) error {
	var doc T
	if err := render.DecodeJSON(r.Body, &doc); err != nil {
		return err
	}
	if n, ok := any(&doc).(normalizer); ok {
		n.Normalize()
	}
	if h.opts.Prepare != nil {
		if err := h.opts.Prepare(r, &doc); err != nil {
			return err
		}
	}
	if d, ok := any(&doc).(defaulter); ok {
		d.SetDefaults(h.now())
	}
	if err := h.validate.Struct(doc); err != nil {
		return domain.ValidationError(err)
	}
	if c, ok := any(&doc).(checker); ok {
		if err := c.Check(); err != nil {
			return err
		}
	}

	m, err := toM(doc)
	if err != nil {
		return err
	}
	delete(m, "_id")

	created, err := h.store.Insert(r.Context(), m)
	if err != nil {
		return err
	}
	h.changed(r.Context(), created)
	if h.opts.OnCreate != nil {
		h.opts.OnCreate(r.Context(), created)
	}
	response.Doc(w, r, http.StatusCreated, created)
	return nil
}

// Update sets only the updatable fields present in the body, validating
// just those fields.
func (h *Handler[T]) Update(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return err
	}
	var doc T
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	if n, ok := any(&doc).(normalizer); ok {
		n.Normalize()
	}

	rv := reflect.ValueOf(doc)
	set := bson.M{}
	names := make([]string, 0, len(keys))
	for key := range keys {
		f, ok := h.fields[key]
		if !ok {
			continue
		}
		names = append(names, f.goName)
		set[f.bsonName] = rv.FieldByIndex(f.index).Interface()
	}
	if len(names) > 0 {
		if err := h.validate.StructPartial(doc, names...); err != nil {
			return domain.ValidationError(err)
		}
	}

	updated, err := h.store.UpdateByID(r.Context(), chi.URLParam(r, h.opts.IDParam), set)
	if err != nil {
		return err
	}
	if len(set) > 0 {
		h.changed(r.Context(), updated)
	}
	response.Doc(w, r, http.StatusOK, updated)
	return nil
}

func (h *Handler[T]) Delete(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, h.opts.IDParam)

	var (
		doc bson.M
		err error
	)
	if h.opts.SoftDelete != "" {
		doc, err = h.store.UpdateByID(r.Context(), id, bson.M{h.opts.SoftDelete: false})
	} else {
		doc, err = h.store.DeleteByID(r.Context(), id)
	}
	if err != nil {
		return err
	}
	h.changed(r.Context(), doc)
	response.NoContent(w)
	return nil
}

func (h *Handler[T]) changed(ctx context.Context, doc bson.M) {
	if h.opts.OnChange != nil && doc != nil {
		h.opts.OnChange(ctx, doc)
	}
}

func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return m, nil
}
