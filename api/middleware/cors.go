package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS returns middleware allowing the storefront client plus local dev.
func CORS(clientURL string) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000"}
	if u := strings.TrimRight(strings.TrimSpace(clientURL), "/"); u != "" && u != "http://localhost:3000" {
		origins = append(origins, u)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
