package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Error Response Tests - Security Focus
// =============================================================================

func TestValidationErrorResponse_DoesNotExposeOperationName(t *testing.T) {
	logger := quietLogger()

	ve := domain.NewValidationError("Engine.NextPage", "teamName", "Team Name is required")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationErrorResponse(w, r, logger, ve)
	})

	req := httptest.NewRequest("POST", "/register", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if strings.Contains(body, "Engine") {
		t.Errorf("response exposes internal operation name: %s", body)
	}
	if strings.Contains(body, "NextPage") {
		t.Errorf("response exposes internal method name: %s", body)
	}
	if !strings.Contains(body, "Validation failed") {
		t.Errorf("response should contain user-friendly message, got: %s", body)
	}
	if !strings.Contains(body, "check your input") {
		t.Errorf("response should have helpful guidance, got: %s", body)
	}
}

func TestValidationErrorResponse_JSON_DoesNotExposeOperationName(t *testing.T) {
	logger := quietLogger()

	ve := domain.NewValidationError("CartHandler.AddItem", "price", "price must be at least 0.")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ValidationErrorResponse(w, r, logger, ve)
	})

	req := httptest.NewRequest("POST", "/api/cart/items", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if strings.Contains(body, "CartHandler") {
		t.Errorf("JSON response exposes internal operation name: %s", body)
	}
	if !strings.Contains(body, `"price"`) {
		t.Errorf("JSON response should contain field name: %s", body)
	}
	if !strings.Contains(body, "must be at least 0") {
		t.Errorf("JSON response should contain field message: %s", body)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	logger := quietLogger()

	dbErr := &mockStorageError{message: "pq: relation \"client_storage\" does not exist"}
	internalErr := domain.Internal(dbErr, "PostgresStorage.Get", "Database query failed")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, internalErr)
	})

	req := httptest.NewRequest("GET", "/forms/3", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if strings.Contains(body, "pq:") {
		t.Errorf("response exposes database error: %s", body)
	}
	if strings.Contains(body, "relation") {
		t.Errorf("response exposes database schema: %s", body)
	}
	if strings.Contains(body, "PostgresStorage") {
		t.Errorf("response exposes internal operation: %s", body)
	}
	if !strings.Contains(body, "internal error") {
		t.Errorf("response should contain generic internal error message, got: %s", body)
	}
}

func TestErrorResponse_InternalErrorHidesDetails_JSON(t *testing.T) {
	logger := quietLogger()

	sensitiveErr := &mockStorageError{message: "dial tcp 192.168.1.100:6379: connection refused"}
	internalErr := domain.Internal(sensitiveErr, "RedisStorage.Set", "Failed to connect")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, internalErr)
	})

	req := httptest.NewRequest("GET", "/api/cart", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if strings.Contains(body, "192.168") {
		t.Errorf("JSON response exposes IP address: %s", body)
	}
	if strings.Contains(body, "6379") {
		t.Errorf("JSON response exposes port number: %s", body)
	}
	if strings.Contains(body, "RedisStorage") {
		t.Errorf("JSON response exposes internal operation: %s", body)
	}
	if !strings.Contains(body, "internal error") {
		t.Errorf("JSON response should contain generic error, got: %s", body)
	}
}

func TestErrorResponse_NotFoundDoesNotExposeInternals(t *testing.T) {
	logger := quietLogger()

	notFoundErr := domain.NotFound("Repository.Get", "form", "42")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, notFoundErr)
	})

	req := httptest.NewRequest("GET", "/forms/42", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if strings.Contains(body, "Repository") {
		t.Errorf("response exposes repository name: %s", body)
	}
	if !strings.Contains(body, "not found") {
		t.Errorf("response should indicate resource not found: %s", body)
	}
}

func TestErrorResponse_UnwrappedErrorReturnsGeneric(t *testing.T) {
	logger := quietLogger()

	rawErr := &mockStorageError{message: "FATAL: password authentication failed for user \"postgres\""}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(w, r, logger, rawErr)
	})

	req := httptest.NewRequest("GET", "/data", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()

	if strings.Contains(body, "FATAL") {
		t.Errorf("response exposes raw error: %s", body)
	}
	if strings.Contains(body, "postgres") {
		t.Errorf("response exposes database user: %s", body)
	}
	if !strings.Contains(body, "internal error") {
		t.Errorf("response should contain generic message, got: %s", body)
	}
}

func TestErrorResponse_UnavailableKeepsMessage(t *testing.T) {
	logger := quietLogger()

	err := domain.Unavailable(errors.New("dial tcp: i/o timeout"), "Engine.Submit", "We couldn't submit your registration.")

	rec := httptest.NewRecorder()
	ErrorResponse(rec, httptest.NewRequest("POST", "/api/forms/1/session/submit", nil), logger, err)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "couldn't submit") {
		t.Errorf("expected corrective message, got: %s", body)
	}
	if strings.Contains(body, "i/o timeout") {
		t.Errorf("response exposes transport error: %s", body)
	}
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETOOLARGE, http.StatusRequestEntityTooLarge},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{domain.ENOTIMPL, http.StatusNotImplemented},
		{domain.EUNAVAILABLE, http.StatusBadGateway},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.expected {
				t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

// mockStorageError simulates a backend error for testing
type mockStorageError struct {
	message string
}

func (e *mockStorageError) Error() string {
	return e.message
}
