package auth

import (
	"net/http"
	"time"
)

const (
	CookieName     = "jwt"
	LoggedOutValue = "loggedout"
)

type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

// SetSessionCookie delivers the token as an http-only cross-site cookie.
func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(opts.TTL),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearSessionCookie overwrites the session with a sentinel that expires in
// ten seconds. Tokens already handed out stay valid until their own expiry.
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    LoggedOutValue,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteNoneMode,
	})
}
