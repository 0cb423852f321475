package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/DukeRupert/leaguekit/internal/cart"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/metrics"
	"github.com/DukeRupert/leaguekit/internal/service"
)

// CartResponse is the JSON rendering of a cart snapshot.
type CartResponse struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
	Open  bool              `json:"open"`
}

func cartResponse(s *cart.Snapshot) CartResponse {
	return CartResponse{
		Items: s.Items(),
		Total: s.Total(),
		Count: s.Count(),
		Open:  s.IsOpen(),
	}
}

// AddItemRequest adds one unit of a product.
type AddItemRequest struct {
	ID           string  `json:"id" validate:"required,max=128"`
	Name         string  `json:"name" validate:"required,max=256"`
	Price        float64 `json:"price" validate:"gte=0"`
	SelectedSize string  `json:"selectedSize,omitempty" validate:"max=64"`
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
	OpenCart     bool    `json:"openCart,omitempty"`
}

// UpdateItemRequest sets a line's quantity. Zero removes the line.
type UpdateItemRequest struct {
	SelectedSize string `json:"selectedSize,omitempty" validate:"max=64"`
	Quantity     int    `json:"quantity" validate:"gte=0,max=999"`
}

// ToggleRequest opens or closes the cart view. Omitting open flips it.
type ToggleRequest struct {
	Open *bool `json:"open,omitempty"`
}

// CartHandler handles the client cart.
type CartHandler struct {
	registration service.RegistrationService
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(registration service.RegistrationService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		registration: registration,
		validate:     newValidator(),
		logger:       logger,
	}
}

// RegisterRoutes registers cart routes with the provided mux.
//
// Routes:
// - GET    /api/cart            -> Show
// - POST   /api/cart/items      -> AddItem
// - DELETE /api/cart/items/{id} -> RemoveItem (?size= selects the line)
// - PATCH  /api/cart/items/{id} -> UpdateItem
// - POST   /api/cart/clear      -> Clear
// - POST   /api/cart/toggle     -> Toggle
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux, limit func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/cart", h.Show)
	mux.Handle("POST /api/cart/items", limit(http.HandlerFunc(h.AddItem)))
	mux.Handle("DELETE /api/cart/items/{id}", limit(http.HandlerFunc(h.RemoveItem)))
	mux.Handle("PATCH /api/cart/items/{id}", limit(http.HandlerFunc(h.UpdateItem)))
	mux.Handle("POST /api/cart/clear", limit(http.HandlerFunc(h.Clear)))
	mux.Handle("POST /api/cart/toggle", limit(http.HandlerFunc(h.Toggle)))
}

// store resolves the caller's cart, writing the error response on failure.
func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	client, err := clientID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return nil, false
	}
	return h.registration.Cart(r.Context(), client), true
}

// Show returns the cart.
func (h *CartHandler) Show(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartResponse(s.Snapshot()))
}

// AddItem adds one unit of a product. The basic kit is managed by the
// registration form and cannot be added here.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	const op = "CartHandler.AddItem"

	s, ok := h.store(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.ID == domain.BasicKitID {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "The basic kit is added by the registration form."))
		return
	}

	snap, err := s.AddToCart(r.Context(), domain.CartItem{
		ID:          req.ID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Image:       req.Image,
	}, req.SelectedSize, cart.AddOptions{Open: req.OpenCart})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	metrics.CartMutation("add")
	writeJSON(w, http.StatusOK, cartResponse(snap))
}

// RemoveItem removes a line. Removing the basic kit is a no-op.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	snap := s.RemoveFromCart(r.Context(), r.PathValue("id"), r.URL.Query().Get("size"))
	metrics.CartMutation("remove")
	writeJSON(w, http.StatusOK, cartResponse(snap))
}

// UpdateItem sets a line's quantity.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	snap := s.UpdateQuantity(r.Context(), r.PathValue("id"), req.SelectedSize, req.Quantity)
	metrics.CartMutation("update_quantity")
	writeJSON(w, http.StatusOK, cartResponse(snap))
}

// Clear removes every optional line.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	snap := s.ClearCart(r.Context())
	metrics.CartMutation("clear")
	writeJSON(w, http.StatusOK, cartResponse(snap))
}

// Toggle opens, closes or flips the cart view.
func (h *CartHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	var req ToggleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, nil, &req); err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
	}

	var snap *cart.Snapshot
	switch {
	case req.Open == nil:
		snap = s.Toggle(r.Context())
	case *req.Open:
		snap = s.Open(r.Context())
	default:
		snap = s.Close(r.Context())
	}
	writeJSON(w, http.StatusOK, cartResponse(snap))
}
