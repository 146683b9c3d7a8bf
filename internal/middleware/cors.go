package middleware

import (
	"net/http"

	"github.com/gorilla/handlers"
)

// CORSMiddleware allows cross-origin calls with credentials from origin.
func CORSMiddleware(origin string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{origin}),
		handlers.AllowCredentials(),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Accept", "Accept-Language", "Content-Language", "Content-Type", "Origin", "Authorization", "X-Requested-With", RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	)
}
