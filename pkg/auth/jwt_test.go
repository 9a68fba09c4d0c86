package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIssueVerifyRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)

	token, err := svc.Issue("5c8a1d5b0190b214360dc057")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "5c8a1d5b0190b214360dc057", claims.UserID)
	assert.WithinDuration(t, time.Now(), claims.IssuedAtTime(), 2*time.Second)
}

func TestVerifyExpired(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService("test-secret", time.Hour).WithClock(fixedClock(issuedAt))

	token, err := svc.Issue("user-1")
	require.NoError(t, err)

	_, err = svc.WithClock(fixedClock(issuedAt.Add(59 * time.Minute))).Verify(token)
	require.NoError(t, err)

	_, err = svc.WithClock(fixedClock(issuedAt.Add(61 * time.Minute))).Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyInvalid(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	other := NewTokenService("other-secret", time.Hour)

	foreign, err := other.Issue("user-1")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	valid, err := svc.Issue("user-1")
	require.NoError(t, err)
	tampered := valid[:strings.LastIndex(valid, ".")+1] + "AAAA"

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"alg none", none},
		{"missing exp", noExpiry},
		{"tampered signature", tampered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueRejectsEmptyUser(t *testing.T) {
	_, err := NewTokenService("s", time.Hour).Issue("")
	assert.Error(t, err)
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", CookieOptions{TTL: 24 * time.Hour, Secure: true})

	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, CookieName, c[0].Name)
	assert.Equal(t, "tok", c[0].Value)
	assert.True(t, c[0].HttpOnly)
	assert.True(t, c[0].Secure)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, CookieOptions{Secure: true})
	c = rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, LoggedOutValue, c[0].Value)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), c[0].Expires, 2*time.Second)
}
