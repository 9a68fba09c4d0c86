package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
	"github.com/diagnosis/luxsuv-tours/pkg/logger"
)

type ctxKey string

const CtxUser ctxKey = "user"

// UserFinder loads active users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type Auth struct {
	tokens *auth.TokenService
	users  UserFinder
	errs   *response.Translator
}

func NewAuth(tokens *auth.TokenService, users UserFinder, errs *response.Translator) *Auth {
	return &Auth{tokens: tokens, users: users, errs: errs}
}

// Protect admits requests carrying a valid token for a user that still
// exists and has not changed password since the token was issued.
func (a *Auth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticate(r)
		if err != nil {
			a.errs.Write(w, r, err)
			return
		}
		ctx := WithUser(r.Context(), user)
		ctx = logger.WithUserID(ctx, user.IDHex())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) authenticate(r *http.Request) (*domain.User, error) {
	ctx := r.Context()

	raw := TokenFromRequest(r)
	if raw == "" {
		return nil, domain.E(domain.KindAuthRequired, "You are not logged in! Please log in to get access.")
	}

	claims, err := a.tokens.Verify(raw)
	if errors.Is(err, auth.ErrExpiredToken) {
		logger.DebugContext(ctx, "expired token presented", "error", err)
		return nil, domain.Wrap(domain.KindExpiredToken, "Your token has expired! Please log in again.", err)
	}
	if err != nil {
		logger.WarnContext(ctx, "invalid token presented", "error", err, "remote_addr", r.RemoteAddr)
		return nil, domain.Wrap(domain.KindInvalidToken, "Invalid token. Please log in again!", err)
	}

	user, err := a.users.FindByID(ctx, claims.UserID)
	if err != nil {
		var invalidID *domain.InvalidIDError
		if errors.Is(err, domain.ErrNotFound) || errors.As(err, &invalidID) {
			return nil, domain.Wrap(domain.KindUserGone, "The user belonging to this token does no longer exist.", err)
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, domain.E(domain.KindStalePassword, "User recently changed password! Please log in again.")
	}
	return user, nil
}

// RestrictTo admits authenticated users whose role is in roles. Mount it
// after Protect.
func (a *Auth) RestrictTo(roles domain.Roles) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				a.errs.Write(w, r, domain.E(domain.KindAuthRequired, "You are not logged in! Please log in to get access."))
				return
			}
			if !roles.Has(user.Role) {
				a.errs.Write(w, r, domain.E(domain.KindForbidden, "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest prefers the Authorization bearer token and falls back to
// the session cookie. A logged-out cookie counts as no token.
func TokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")); raw != "" {
			return raw
		}
	}
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != auth.LoggedOutValue {
		return c.Value
	}
	return ""
}

func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, CtxUser, u)
}

func CurrentUser(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(CtxUser).(*domain.User)
	return u, ok && u != nil
}
