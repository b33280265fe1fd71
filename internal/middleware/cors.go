package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig holds configuration for the CORS middleware
type CORSConfig struct {
	// AllowedOrigins lists the origins browsers may call from. "*" allows any.
	AllowedOrigins []string
	// MaxAge is how long, in seconds, preflight results may be cached.
	MaxAge int
}

// DefaultCORSConfig allows every origin, matching a browser front end served
// from anywhere.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		MaxAge:         600,
	}
}

// CORS returns a middleware that answers preflight requests and adds CORS
// headers. Content-Disposition is exposed so browser clients can read the
// name of a downloaded file.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Disposition", "Content-Length"},
		MaxAge:         config.MaxAge,
	})
	return c.Handler
}
