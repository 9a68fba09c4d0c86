package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
	"github.com/diagnosis/luxsuv-tours/internal/http/response"
	"github.com/diagnosis/luxsuv-tours/pkg/auth"
)

var testUser = &domain.User{
	ID: bson.NewObjectID(), Name: "Leo Gillespie", Email: "leo@example.com",
	Role: domain.RoleUser, PasswordHash: "$argon2id$secret", Active: true,
}

type stubAuth struct {
	token   string
	err     error
	updated *domain.UpdateMeRequest
	deleted bool
}

func (s *stubAuth) Signup(_ context.Context, req *domain.SignupRequest) (*domain.User, string, error) {
	return testUser, s.token, s.err
}

func (s *stubAuth) Login(_ context.Context, req *domain.LoginRequest) (*domain.User, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return testUser, s.token, nil
}

func (s *stubAuth) UpdatePassword(context.Context, *domain.User, *domain.UpdatePasswordRequest) (*domain.User, string, error) {
	return testUser, s.token, s.err
}

func (s *stubAuth) UpdateMe(_ context.Context, u *domain.User, req *domain.UpdateMeRequest) (*domain.User, error) {
	s.updated = req
	return u, s.err
}

func (s *stubAuth) DeleteMe(context.Context, *domain.User) error {
	s.deleted = true
	return s.err
}

type stubReset struct {
	email string
	token string
}

func (s *stubReset) Forgot(_ context.Context, req *domain.ForgotPasswordRequest) error {
	s.email = req.Email
	return nil
}

func (s *stubReset) Reset(_ context.Context, token string, _ *domain.ResetPasswordRequest) (*domain.User, string, error) {
	s.token = token
	return testUser, "fresh-token", nil
}

type userFinder map[string]*domain.User

func (f userFinder) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

type usersFixture struct {
	router http.Handler
	svc    *stubAuth
	reset  *stubReset
	tokens *auth.TokenService
}

func newUsersFixture(t *testing.T, users ...*domain.User) *usersFixture {
	t.Helper()
	tokens := auth.NewTokenService("test-secret", time.Hour)
	finder := userFinder{}
	for _, u := range users {
		finder[u.IDHex()] = u
	}
	errs := response.NewTranslator(false)
	svc := &stubAuth{token: "signed-token"}
	reset := &stubReset{}
	h := NewUsersHandler(
		NewAuthHandler(svc, reset, auth.CookieOptions{TTL: 90 * 24 * time.Hour, Secure: true}),
		svc, nil, domain.NewValidator(), middleware.NewAuth(tokens, finder, errs), errs,
	)
	return &usersFixture{router: h.Routes(), svc: svc, reset: reset, tokens: tokens}
}

func (f *usersFixture) do(t *testing.T, method, path, body string, user *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		tok, err := f.tokens.Issue(user.IDHex())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", auth.CookieName)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestSignupSetsCookieAndToken(t *testing.T) {
	f := newUsersFixture(t)

	rec := f.do(t, http.MethodPost, "/signup",
		`{"name":"Leo","email":"leo@example.com","password":"Pass1234!","passwordConfirm":"Pass1234!"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	c := sessionCookie(t, rec)
	assert.Equal(t, "signed-token", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.WithinDuration(t, time.Now().Add(90*24*time.Hour), c.Expires, time.Minute)

	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "signed-token", body["token"])
	user := body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "leo@example.com", user["email"])
	assert.NotContains(t, rec.Body.String(), "argon2id")
	assert.NotContains(t, user, "active")
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing password", `{"email":"leo@example.com"}`, nil, http.StatusBadRequest, string(domain.KindValidation)},
		{"bad json", `{"email":`, nil, http.StatusBadRequest, string(domain.KindValidation)},
		{"wrong password", `{"email":"leo@example.com","password":"nope"}`,
			domain.E(domain.KindInvalidCredentials, "Incorrect email or password"), http.StatusUnauthorized, string(domain.KindInvalidCredentials)},
		{"ok", `{"email":"leo@example.com","password":"Pass1234!"}`, nil, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUsersFixture(t)
			f.svc.err = tt.err
			rec := f.do(t, http.MethodPost, "/login", tt.body, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, rec)["code"])
				assert.Empty(t, rec.Result().Cookies())
				return
			}
			assert.Equal(t, "signed-token", sessionCookie(t, rec).Value)
		})
	}
}

func TestLogoutReplacesCookie(t *testing.T) {
	f := newUsersFixture(t)

	rec := f.do(t, http.MethodGet, "/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := sessionCookie(t, rec)
	assert.Equal(t, auth.LoggedOutValue, c.Value)
	assert.True(t, c.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), c.Expires, 5*time.Second)
	assert.Equal(t, "success", decode(t, rec)["status"])
}

func TestPasswordResetRoutes(t *testing.T) {
	f := newUsersFixture(t)

	rec := f.do(t, http.MethodPost, "/forgotPassword", `{"email":"leo@example.com"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Token sent to email!", decode(t, rec)["message"])
	assert.Equal(t, "leo@example.com", f.reset.email)

	rec = f.do(t, http.MethodPatch, "/resetPassword/abc123",
		`{"password":"Pass1234!","passwordConfirm":"Pass1234!"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", f.reset.token)
	assert.Equal(t, "fresh-token", sessionCookie(t, rec).Value)
}

func TestProtectedUserRoutes(t *testing.T) {
	admin := &domain.User{ID: bson.NewObjectID(), Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin, Active: true}
	f := newUsersFixture(t, testUser, admin)

	rec := f.do(t, http.MethodPatch, "/updateMe", `{"name":"Leo G"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPatch, "/updateMe", `{"name":"Leo G"}`, testUser)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, f.svc.updated)
	assert.Equal(t, "Leo G", *f.svc.updated.Name)

	rec = f.do(t, http.MethodDelete, "/deleteMe", "", testUser)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, f.svc.deleted)

	rec = f.do(t, http.MethodGet, "/", "", testUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/", `{}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "/signup")
}
