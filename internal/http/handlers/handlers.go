// Package handlers wires the API resources onto chi routers.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-tours/internal/domain"
	"github.com/diagnosis/luxsuv-tours/internal/http/middleware"
)

var errNoUser = domain.E(domain.KindAuthRequired, "You are not logged in! Please log in to get access.")

// paramFromUser exposes the authenticated user's id as a route parameter,
// so /me can reuse the by-id handlers.
func paramFromUser(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := middleware.CurrentUser(r.Context()); ok {
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					rctx.URLParams.Add(name, u.IDHex())
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
