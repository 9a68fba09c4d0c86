package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/internal/service"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
)

// PasswordResetter runs the emailed reset-token flow.
type PasswordResetter interface {
	Forgot(ctx context.Context, req *domain.ForgotPasswordRequest) error
	Reset(ctx context.Context, token string, req *domain.ResetPasswordRequest) (*domain.User, string, error)
}

type AuthHandler struct {
	svc    service.AuthService
	reset  PasswordResetter
	cookie auth.CookieOptions
}

func NewAuthHandler(svc service.AuthService, reset PasswordResetter, cookie auth.CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, reset: reset, cookie: cookie}
}

// sendToken sets the session cookie and echoes the token with the user.
func (h *AuthHandler) sendToken(w http.ResponseWriter, r *http.Request, status int, user *domain.User, token string) {
	auth.SetSessionCookie(w, token, h.cookie)
	response.Token(w, r, status, token, map[string]any{"user": user})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) error {
	var in domain.SignupRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	user, token, err := h.svc.Signup(r.Context(), &in)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusCreated, user, token)
	return nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var in domain.LoginRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	if in.Email == "" || in.Password == "" {
		return domain.E(domain.KindValidation, "Please provide email and password!")
	}
	user, token, err := h.svc.Login(r.Context(), &in)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, user, token)
	return nil
}

// Logout only replaces the cookie. Tokens already issued stay valid until
// they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) error {
	auth.ClearSessionCookie(w, h.cookie)
	response.JSON(w, r, http.StatusOK, response.Envelope{Status: response.StatusSuccess})
	return nil
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	var in domain.ForgotPasswordRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	if err := h.reset.Forgot(r.Context(), &in); err != nil {
		return err
	}
	response.Message(w, r, http.StatusOK, "Token sent to email!")
	return nil
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	var in domain.ResetPasswordRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	user, token, err := h.reset.Reset(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, user, token)
	return nil
}

func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) error {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return errNoUser
	}
	var in domain.UpdatePasswordRequest
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		return err
	}
	updated, token, err := h.svc.UpdatePassword(r.Context(), user, &in)
	if err != nil {
		return err
	}
	h.sendToken(w, r, http.StatusOK, updated, token)
	return nil
}
