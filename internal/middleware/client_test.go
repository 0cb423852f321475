package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func serveClient(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClientID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	NewClientMiddleware(quietLogger(), true).WithClient(handler).ServeHTTP(rec, req)
	return rec, seen
}

func clientCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == ClientCookieName {
			return c
		}
	}
	return nil
}

func TestWithClient_NoCookie_IssuesID(t *testing.T) {
	rec, seen := serveClient(t, httptest.NewRequest("GET", "/api/cart", nil))

	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("expected a UUID client id in context, got %q", seen)
	}

	c := clientCookie(rec)
	if c == nil {
		t.Fatal("expected client cookie to be set")
	}
	if c.Value != seen {
		t.Errorf("cookie %q does not match context id %q", c.Value, seen)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie flags not hardened: %+v", c)
	}
}

func TestWithClient_ValidCookie_ReusesID(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: id})

	rec, seen := serveClient(t, req)

	if seen != id {
		t.Errorf("expected %q, got %q", id, seen)
	}
	if clientCookie(rec) != nil {
		t.Error("a valid cookie should not be reissued")
	}
}

func TestWithClient_MalformedCookie_Replaced(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "../../etc/passwd"})

	rec, seen := serveClient(t, req)

	if seen == "../../etc/passwd" {
		t.Fatal("malformed id must not reach handlers")
	}
	if c := clientCookie(rec); c == nil || c.Value != seen {
		t.Error("expected a replacement cookie")
	}
}

func TestGetClientID_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := GetClientID(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

func TestStack_Order(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Stack(mk("outer"), mk("inner"))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("unexpected order %v", order)
	}
}
