package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

type CORSOptions struct {
	AllowOrigin  string
	AllowMethods []string
	AllowHeaders []string
	// MaxAge in seconds; 0 omits Access-Control-Max-Age.
	MaxAge int
}

// DefaultCORSOptions is the permissive policy served on the proxy route.
func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowOrigin:  "*",
		AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       86400,
	}
}

// SetCORSHeaders writes the full CORS header set for opts.
func SetCORSHeaders(h http.Header, opts CORSOptions) {
	origin := opts.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	h.Set("Access-Control-Allow-Origin", origin)
	if len(opts.AllowMethods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(opts.AllowMethods, ", "))
	}
	if len(opts.AllowHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(opts.AllowHeaders, ", "))
	}
	if opts.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
	}
}

// AllowOrigin sets Access-Control-Allow-Origin on every response.
func AllowOrigin(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			next.ServeHTTP(w, r)
		})
	}
}
