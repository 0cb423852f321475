package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// BasicAuthMiddleware guards operator endpoints (metrics, price settings)
// with HTTP basic auth.
type BasicAuthMiddleware struct {
	realm   string
	userSum [32]byte
	passSum [32]byte
	enabled bool
}

// NewBasicAuthMiddleware creates a new basic auth middleware for realm.
// If both username and password are empty, authentication is disabled.
func NewBasicAuthMiddleware(realm, username, password string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		realm:   realm,
		userSum: sha256.Sum256([]byte(username)),
		passSum: sha256.Sum256([]byte(password)),
		enabled: username != "" || password != "",
	}
}

// Handler returns middleware that requires basic authentication.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !m.matches(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+m.realm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Enabled reports whether credentials are configured.
func (m *BasicAuthMiddleware) Enabled() bool {
	return m.enabled
}

// matches compares fixed-size digests in constant time so neither the
// content nor the length of the credentials leaks through timing.
func (m *BasicAuthMiddleware) matches(user, pass string) bool {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userMatch := subtle.ConstantTimeCompare(u[:], m.userSum[:]) == 1
	passMatch := subtle.ConstantTimeCompare(p[:], m.passSum[:]) == 1
	return userMatch && passMatch
}
