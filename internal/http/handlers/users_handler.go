package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/handlers/factory"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/repo/mongodb"
	"github.com/diagnosis/luxsuv-tours/internal/service"
)

type UsersHandler struct {
	auth  *AuthHandler
	svc   service.AuthService
	crud  *factory.Handler[domain.User]
	guard *middleware.Auth
	errs  *response.Translator
}

func NewUsersHandler(
	authH *AuthHandler,
	svc service.AuthService,
	store factory.Store,
	validate *validator.Validate,
	guard *middleware.Auth,
	errs *response.Translator,
) *UsersHandler {
	return &UsersHandler{
		auth: authH,
		svc:  svc,
		crud: factory.New(store, validate, factory.Options[domain.User]{
			Query:      mongodb.UserQuery,
			SoftDelete: domain.UserFieldActive,
		}),
		guard: guard,
		errs:  errs,
	}
}

func (h *UsersHandler) Routes() chi.Router {
	r := chi.NewRouter()
	wrap := h.errs.Wrap

	r.Post("/signup", wrap(h.auth.Signup))
	r.Post("/login", wrap(h.auth.Login))
	r.Get("/logout", wrap(h.auth.Logout))
	r.Post("/forgotPassword", wrap(h.auth.ForgotPassword))
	r.Patch("/resetPassword/{token}", wrap(h.auth.ResetPassword))

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Protect)

		r.Patch("/updateMyPassword", wrap(h.auth.UpdateMyPassword))
		r.With(paramFromUser("id")).Get("/me", wrap(h.crud.Get))
		r.Patch("/updateMe", wrap(h.updateMe))
		r.Delete("/deleteMe", wrap(h.deleteMe))

		r.Group(func(r chi.Router) {
			r.Use(h.guard.RestrictTo(domain.RoleSet(domain.RoleAdmin)))
			r.Get("/", wrap(h.crud.List))
			r.Post("/", wrap(h.createUser))
			r.Get("/{id}", wrap(h.crud.Get))
			r.Patch("/{id}", wrap(h.crud.Update))
			r.Delete("/{id}", wrap(h.crud.Delete))
		})
	})
	return r
}

func (h *UsersHandler) updateMe(w http.ResponseWriter, r *http.Request) error {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return errNoUser
	}
	var in domain.UpdateMeRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	updated, err := h.svc.UpdateMe(r.Context(), user, &in)
	if err != nil {
		return err
	}
	response.JSON(w, r, http.StatusOK, response.Envelope{
		Status: response.StatusSuccess,
		Data:   map[string]any{"user": updated},
	})
	return nil
}

func (h *UsersHandler) deleteMe(w http.ResponseWriter, r *http.Request) error {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return errNoUser
	}
	if err := h.svc.DeleteMe(r.Context(), user); err != nil {
		return err
	}
	response.NoContent(w)
	return nil
}

// createUser exists so the admin route answers with guidance instead of a
// document without a password.
func (h *UsersHandler) createUser(http.ResponseWriter, *http.Request) error {
	return domain.E(domain.KindValidation, "This route is not defined! Please use /signup instead")
}
