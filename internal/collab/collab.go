// Package collab defines the remote collaborators the form engine reads
// configuration and prior submissions from, and submits answers to.
package collab

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

// Client is the collaborator surface consumed by the form engine.
type Client interface {
	// LandingPage returns the landing page for a form. Missing or disabled
	// pages return ErrNotFound.
	LandingPage(ctx context.Context, formID int) (*LandingPage, error)

	Products(ctx context.Context, filter ProductFilter) ([]Product, error)
	Submissions(ctx context.Context, formID int) ([]domain.SubmissionRecord, error)

	KitPricing(ctx context.Context) (domain.KitPricingConfig, error)
	UpdateKitPricing(ctx context.Context, cfg domain.KitPricingConfig) (domain.KitPricingConfig, error)
	EntryFeeSettings(ctx context.Context) (domain.EntryFeeConfig, error)
	UpdateEntryFeeSettings(ctx context.Context, cfg domain.EntryFeeConfig) (domain.EntryFeeConfig, error)

	KitSizeCharts(ctx context.Context) (SizeCharts, error)
	SupporterProducts(ctx context.Context) ([]Product, error)
	ShirtDesigns(ctx context.Context, activeOnly bool) ([]ShirtDesign, error)
	TeamRegistrationBanner(ctx context.Context) (*Banner, error)

	// CreateSubmission stores a form submission. Team registrations return
	// one-time credentials in the result's TeamProfile.
	CreateSubmission(ctx context.Context, formID int, data map[string]any) (*domain.SubmissionResult, error)
}

// Error values returned by collaborators.
var (
	ErrNotFound    = errors.New("collab: not found")
	ErrUnavailable = errors.New("collab: service unavailable")
	ErrRejected    = errors.New("collab: request rejected")
)

// WrapError adds the failing operation to a collaborator error.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("collab %s: %w", operation, err)
}

// =============================================================================
// Types
// =============================================================================

// ID accepts numeric or string identifiers.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*id = ""
		return nil
	}
	*id = ID(strings.Trim(s, `"`))
	return nil
}

// LandingPage is the marketing page shown before a form.
type LandingPage struct {
	FormID       int           `json:"formId"`
	Enabled      bool          `json:"enabled"`
	Hero         Hero          `json:"heroSection"`
	Features     []Feature     `json:"features,omitempty"`
	Benefits     Benefits      `json:"benefits"`
	Testimonials []Testimonial `json:"testimonials,omitempty"`
	Stats        []Stat        `json:"stats,omitempty"`
}

type Hero struct {
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle"`
	BackgroundImage string `json:"backgroundImage,omitempty"`
	CTAText         string `json:"ctaText,omitempty"`
}

type Feature struct {
	Icon        string `json:"icon,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Benefits struct {
	Title string   `json:"title"`
	Items []string `json:"items,omitempty"`
}

type Testimonial struct {
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Role   string `json:"role,omitempty"`
}

type Stat struct {
	Number string `json:"number"`
	Label  string `json:"label"`
}

// Product is a purchasable item (supporter apparel, upsells, bundles).
type Product struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Category    string   `json:"category,omitempty"`
	SizeOptions []string `json:"sizeOptions,omitempty"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Active      bool     `json:"active"`
}

// CartItem converts the product into a cart line without a size.
func (p Product) CartItem() domain.CartItem {
	return domain.CartItem{
		ID:          string(p.ID),
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Image:       p.ImageURL,
	}
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Category   string
	ActiveOnly bool
}

// Matches reports whether p passes the filter.
func (f ProductFilter) Matches(p Product) bool {
	if f.ActiveOnly && !p.Active {
		return false
	}
	return f.Category == "" || strings.EqualFold(f.Category, p.Category)
}

// SizeCharts links the kit size guides.
type SizeCharts struct {
	ShirtChartURL string `json:"shirtChartUrl"`
	PantsChartURL string `json:"pantsChartUrl"`
}

// ShirtDesign is one design in the kit library.
type ShirtDesign struct {
	ID     ID       `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images,omitempty"`
	Active bool     `json:"active"`
}

// MainImage returns the first image of the design, or "".
func (d ShirtDesign) MainImage() string {
	if len(d.Images) == 0 {
		return ""
	}
	return d.Images[0]
}

// Banner is the welcome banner above the team registration form.
type Banner struct {
	ImageURL   string `json:"imageUrl,omitempty"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle,omitempty"`
	ShowOnPage int    `json:"showOnPage,omitempty"`
}

// DefaultBanner is used when no banner has been configured.
func DefaultBanner() *Banner {
	return &Banner{
		Title:      "Welcome to Team Registration",
		Subtitle:   "Register your team and prepare for the season",
		ShowOnPage: 1,
	}
}

// DefaultSizeCharts has no charts configured.
func DefaultSizeCharts() SizeCharts {
	return SizeCharts{}
}
