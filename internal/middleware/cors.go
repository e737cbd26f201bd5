// internal/middleware/cors.go

package middleware

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/cors"
)

// OriginAllowed reports whether the host of origin matches one of patterns.
// Patterns use path.Match syntax against "host[:port]", the same form the
// websocket accept check uses, e.g. "localhost:5173" or "*.example.com".
func OriginAllowed(origin string, patterns []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	for _, p := range patterns {
		if ok, _ := path.Match(strings.ToLower(p), host); ok {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets the Access-Control headers for
// browser origins that match patterns. Other origins get no CORS headers.
func CORS(patterns []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return OriginAllowed(origin, patterns)
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
