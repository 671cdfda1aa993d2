package main

import (
	"net/http"

	"github.com/rs/cors"
)

// withCORS allows credentialed requests from the listed origins. An empty
// list disables CORS headers entirely.
func withCORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	})
	return c.Handler
}
