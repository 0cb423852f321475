// Package middleware contains HTTP middleware for the registration service.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// ClientCookieName holds the anonymous client id. Carts and drafts are
	// stored under this id.
	ClientCookieName = "leaguekit_client"

	// ClientCookiePath ensures the cookie is sent with all requests.
	ClientCookiePath = "/"

	// ClientCookieMaxAge keeps carts and drafts for 90 days of inactivity.
	ClientCookieMaxAge = 90 * 24 * 60 * 60
)

// =============================================================================
// Context Keys
// =============================================================================

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const clientContextKey contextKey = "client_id"

// GetClientID returns the client id stored by WithClient, or "" if the
// request did not pass through it.
func GetClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientContextKey).(string)
	return id
}

// SetClientID stores a client id in ctx. Handlers under test use it to skip
// the cookie round trip.
func SetClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientContextKey, id)
}

// =============================================================================
// Client Middleware
// =============================================================================

// ClientMiddleware identifies the browser behind each request.
type ClientMiddleware struct {
	logger   *slog.Logger
	isSecure bool // Whether to set Secure flag on cookies (true in production)
}

// NewClientMiddleware creates a new ClientMiddleware.
func NewClientMiddleware(logger *slog.Logger, isSecure bool) *ClientMiddleware {
	return &ClientMiddleware{
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithClient reads the client cookie, issuing a fresh id when it is missing
// or not a valid UUID, and stores the id in the request context.
//
// Flow:
//
//	Request -> WithClient -> Handler
//	           |
//	           +-> Read cookie
//	           +-> Issue new id (if missing or malformed)
//	           +-> Set id in context
//	           +-> Call next handler (always)
func (m *ClientMiddleware) WithClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(ClientCookieName); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}

		if id == "" {
			id = uuid.NewString()
			SetClientCookie(w, id, m.isSecure)
			m.logger.Debug("issued client id", "client_id", id)
		}

		next.ServeHTTP(w, r.WithContext(SetClientID(r.Context(), id)))
	})
}

// =============================================================================
// Cookie Helpers
// =============================================================================

// SetClientCookie sets the client cookie on the response.
//
// Cookie Settings:
// - HttpOnly: true - Prevents JavaScript access (XSS protection)
// - Secure: configurable - Set true in production (HTTPS only)
// - SameSite: Lax - Prevents CSRF while allowing normal navigation
func SetClientCookie(w http.ResponseWriter, id string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     ClientCookiePath,
		MaxAge:   ClientCookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
func isAPIRequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// The first middleware is the outermost (runs first on request, last on
// response).
//
// Example:
//
//	stack := Stack(logging.Handler, clients.WithClient)
//	mux.Handle("GET /api/cart", stack(cartHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
