package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// SecurityHeadersMiddleware adds security headers to API responses and
// answers CORS for the configured front-end origins.
type SecurityHeadersMiddleware struct {
	isSecure       bool // Whether to enable HTTPS-specific headers (true in production)
	allowedOrigins []string
}

// NewSecurityHeadersMiddleware creates a new security headers middleware.
// Requests from allowedOrigins may call the API with credentials so the
// client cookie travels with them.
func NewSecurityHeadersMiddleware(isSecure bool, allowedOrigins []string) *SecurityHeadersMiddleware {
	return &SecurityHeadersMiddleware{
		isSecure:       isSecure,
		allowedOrigins: allowedOrigins,
	}
}

// Handler returns middleware that sets security headers on all responses.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Responses are JSON; nothing may load from them.
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		if m.isSecure {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		// Carts and drafts are per client and must not be cached by proxies.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}

		if origin := r.Header.Get("Origin"); origin != "" && m.originAllowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (m *SecurityHeadersMiddleware) originAllowed(origin string) bool {
	return slices.Contains(m.allowedOrigins, origin)
}
