package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// NewRouter builds the chi router for the six routes spec.md §6 names,
// with the logging/recovery/timeout middleware triple used across the
// corpus's HTTP services.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/subscribe", api.handleSubscribe)
	r.Post("/quote", api.handleQuote)
	r.Post("/settle", api.handleSettle)
	r.Post("/slash", api.handleSlash)
	r.Get("/health", api.handleHealth)
	r.Get("/merchants", api.handleMerchants)

	return r
}

// requestID stamps every response with an X-Request-Id, generating one
// with google/uuid when the caller didn't already supply one — the same
// external-facing ID convention the corpus uses throughout its services.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}
