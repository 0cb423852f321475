// Package handler contains the JSON HTTP handlers for the registration API.
//
// This file implements template listing and the per-client form session
// endpoints that drive the engine.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/engine"
	"github.com/DukeRupert/leaguekit/internal/service"
)

// =============================================================================
// Response Types
// =============================================================================

// FormSummary is one entry of the template listing.
type FormSummary struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Kind        domain.FormKind `json:"kind,omitempty"`
	CategoryIDs []int           `json:"categoryIds,omitempty"`
	MultiPage   bool            `json:"multiPage"`
	Active      bool            `json:"active"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	View engine.View `json:"view"`
}

// ActionErrorResponse carries the outcome alongside the error when an
// action failed after reaching the engine, so the client keeps its state.
type ActionErrorResponse struct {
	JSONError
	Outcome engine.Outcome `json:"outcome"`
	View    engine.View    `json:"view"`
}

// SelectRequest picks a prior submission in a submission-dropdown field.
type SelectRequest struct {
	FieldID      string `json:"fieldId" validate:"required,max=64"`
	SubmissionID string `json:"submissionId"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// FormHandler handles template and form session requests.
type FormHandler struct {
	registration service.RegistrationService
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(registration service.RegistrationService, logger *slog.Logger) *FormHandler {
	return &FormHandler{
		registration: registration,
		validate:     newValidator(),
		logger:       logger,
	}
}

// =============================================================================
// Route Registration
// =============================================================================

// RegisterRoutes registers the form routes with the provided mux.
//
// Mutating session routes are wrapped with limit.
//
// Routes:
// - GET    /api/forms                                -> List
// - GET    /api/forms/{formID}                       -> Get
// - GET    /api/forms/{formID}/pages/{pageID}/fields -> PageFields
// - GET    /api/forms/{formID}/session               -> OpenSession
// - POST   /api/forms/{formID}/session/values        -> SetValue
// - POST   /api/forms/{formID}/session/select        -> Select
// - POST   /api/forms/{formID}/session/next          -> Next
// - POST   /api/forms/{formID}/session/prev          -> Prev
// - POST   /api/forms/{formID}/session/submit        -> Submit
// - POST   /api/forms/{formID}/session/reset         -> Reset
// - DELETE /api/forms/{formID}/session               -> CloseSession
func (h *FormHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/forms", h.List)
	mux.HandleFunc("GET /api/forms/{formID}", h.Get)
	mux.HandleFunc("GET /api/forms/{formID}/pages/{pageID}/fields", h.PageFields)
	mux.HandleFunc("GET /api/forms/{formID}/session", h.OpenSession)
	mux.Handle("POST /api/forms/{formID}/session/values", limit(http.HandlerFunc(h.SetValue)))
	mux.Handle("POST /api/forms/{formID}/session/select", limit(http.HandlerFunc(h.Select)))
	mux.Handle("POST /api/forms/{formID}/session/next", limit(http.HandlerFunc(h.Next)))
	mux.Handle("POST /api/forms/{formID}/session/prev", limit(http.HandlerFunc(h.Prev)))
	mux.Handle("POST /api/forms/{formID}/session/submit", limit(http.HandlerFunc(h.Submit)))
	mux.Handle("POST /api/forms/{formID}/session/reset", limit(http.HandlerFunc(h.Reset)))
	mux.HandleFunc("DELETE /api/forms/{formID}/session", h.CloseSession)
}

// =============================================================================
// Templates
// =============================================================================

// List returns every template, optionally filtered by ?category=.
func (h *FormHandler) List(w http.ResponseWriter, r *http.Request) {
	category := 0
	if raw := r.URL.Query().Get("category"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ErrorResponse(w, r, h.logger, domain.Invalid("FormHandler.List", "category must be a positive integer"))
			return
		}
		category = n
	}

	templates := h.registration.ListForms(category)
	out := make([]FormSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, FormSummary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Kind:        t.Kind,
			CategoryIDs: t.CategoryIDs,
			MultiPage:   t.IsMultiPage(),
			Active:      t.Active,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"forms": out})
}

// Get returns one template.
func (h *FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	formID, err := pathInt(r, "formID")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	t, err := h.registration.GetForm(formID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// PageFields returns the ordered fields of one page.
func (h *FormHandler) PageFields(w http.ResponseWriter, r *http.Request) {
	formID, err := pathInt(r, "formID")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	pageID, err := pathInt(r, "pageID")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	fields, err := h.registration.PageFields(formID, pageID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// =============================================================================
// Session
// =============================================================================

// OpenSession creates or resumes the caller's session and returns its state.
func (h *FormHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	client, formID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	e, err := h.registration.Open(r.Context(), client, formID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{View: e.View()})
}

// SetValue applies one typed mutation.
func (h *FormHandler) SetValue(w http.ResponseWriter, r *http.Request) {
	client, formID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	var m engine.Mutation
	if err := decodeJSON(w, r, h.validate, &m); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	res, err := h.registration.Apply(r.Context(), client, formID, m)
	h.writeResult(w, r, res, err)
}

// Select picks a prior submission and autofills from it.
func (h *FormHandler) Select(w http.ResponseWriter, r *http.Request) {
	client, formID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	var req SelectRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	res, err := h.registration.Apply(r.Context(), client, formID, engine.Mutation{
		Op:      "selectSubmission",
		FieldID: req.FieldID,
		Text:    req.SubmissionID,
	})
	h.writeResult(w, r, res, err)
}

// Next validates the current page and advances, submitting on the last.
func (h *FormHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.registration.Next)
}

// Prev moves back one page.
func (h *FormHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.registration.Prev)
}

// Submit validates every page and sends the registration.
func (h *FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.registration.Submit)
}

// Reset starts a fresh response.
func (h *FormHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.registration.Reset)
}

// CloseSession drops the in-memory session. The draft is kept.
func (h *FormHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	client, formID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	h.registration.Discard(client, formID)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

type actionFunc func(ctx context.Context, clientID string, formID int) (*service.Result, error)

func (h *FormHandler) action(w http.ResponseWriter, r *http.Request, fn actionFunc) {
	client, formID, ok := h.sessionParams(w, r)
	if !ok {
		return
	}
	res, err := fn(r.Context(), client, formID)
	h.writeResult(w, r, res, err)
}

func (h *FormHandler) sessionParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	client, err := clientID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return "", 0, false
	}
	formID, err := pathInt(r, "formID")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return "", 0, false
	}
	return client, formID, true
}

// writeResult renders an engine result. Blocked actions (missing fields,
// duplicates) are 200 responses carrying the alert. A collaborator failure
// that still produced a result keeps the outcome and view in the 502 body.
func (h *FormHandler) writeResult(w http.ResponseWriter, r *http.Request, res *service.Result, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}
	if res == nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)
	logError(h.logger, r, err, code, domain.ErrorOp(err), status)

	body := ActionErrorResponse{Outcome: res.Outcome, View: res.View}
	body.Error.Code = code
	body.Error.Message = domain.ErrorMessage(err)
	writeJSON(w, status, body)
}
