package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

const localStorefront = "http://localhost:3000"

// CORS lets the storefront call the API. The local dev origin is always
// allowed alongside the configured one.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := []string{localStorefront}
	if origin := strings.TrimRight(strings.TrimSpace(frontendURL), "/"); origin != "" && origin != localStorefront {
		origins = append(origins, origin)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
