package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/service"
)

// SettingsHandler exposes the league-wide price settings.
type SettingsHandler struct {
	registration service.RegistrationService
	logger       *slog.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(registration service.RegistrationService, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		registration: registration,
		logger:       logger,
	}
}

// RegisterRoutes registers settings routes. Writes are wrapped with
// requireAdmin.
//
// Routes:
// - GET /api/settings/kit-pricing -> KitPricing
// - PUT /api/settings/kit-pricing -> UpdateKitPricing
// - GET /api/settings/entry-fee   -> EntryFee
// - PUT /api/settings/entry-fee   -> UpdateEntryFee
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/settings/kit-pricing", h.KitPricing)
	mux.Handle("PUT /api/settings/kit-pricing", requireAdmin(http.HandlerFunc(h.UpdateKitPricing)))
	mux.HandleFunc("GET /api/settings/entry-fee", h.EntryFee)
	mux.Handle("PUT /api/settings/entry-fee", requireAdmin(http.HandlerFunc(h.UpdateEntryFee)))
}

// KitPricing returns the basic kit configuration.
func (h *SettingsHandler) KitPricing(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.registration.KitPricing(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateKitPricing replaces the basic kit configuration.
func (h *SettingsHandler) UpdateKitPricing(w http.ResponseWriter, r *http.Request) {
	var cfg domain.KitPricingConfig
	if err := decodeJSON(w, r, nil, &cfg); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	saved, err := h.registration.UpdateKitPricing(r.Context(), cfg)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// EntryFee returns the entry fee configuration.
func (h *SettingsHandler) EntryFee(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.registration.EntryFee(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateEntryFee replaces the entry fee configuration.
func (h *SettingsHandler) UpdateEntryFee(w http.ResponseWriter, r *http.Request) {
	var cfg domain.EntryFeeConfig
	if err := decodeJSON(w, r, nil, &cfg); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	saved, err := h.registration.UpdateEntryFee(r.Context(), cfg)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
