// Package pricing derives basic-kit prices and league entry fees.
//
// Prices are computed from independently loaded inputs (a base and a team or
// admin adjustment). Every function here is pure: the same inputs always give
// the same price, and updating one input never disturbs another.
package pricing

import (
	"math"
	"strconv"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

// Defaults are the fallbacks used when no configuration has been loaded.
type Defaults struct {
	KitBasePrice float64
	EntryBaseFee float64
}

// DefaultDefaults returns the league's stock fallbacks.
func DefaultDefaults() Defaults {
	return Defaults{KitBasePrice: 150, EntryBaseFee: 500}
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// KitPrice returns basePrice + markup.
func KitPrice(basePrice, markup float64) float64 {
	return Round2(basePrice + markup)
}

// EntryFee returns baseFee + adjustment.
func EntryFee(baseFee, adjustment float64) float64 {
	return Round2(baseFee + adjustment)
}

// FormatPrice renders a price with two decimals, e.g. "170.00".
func FormatPrice(p float64) string {
	return strconv.FormatFloat(Round2(p), 'f', 2, 64)
}

// =============================================================================
// Quotes
// =============================================================================

// Quote is a derived price together with the inputs that produced it.
type Quote struct {
	Base       float64 `json:"base"`
	Adjustment float64 `json:"adjustment"`
	Price      float64 `json:"price"`

	// Configured is false when the base came from a fallback.
	Configured bool `json:"configured"`
}

// Display returns the formatted price.
func (q Quote) Display() string {
	return FormatPrice(q.Price)
}

// KitQuote prices a kit from a field's pricing channel. fieldBase is the
// template-declared fallback; zero means use the defaults.
func (d Defaults) KitQuote(p domain.Pricing, fieldBase float64) Quote {
	base := d.KitBasePrice
	if fieldBase > 0 {
		base = fieldBase
	}
	q := Quote{Base: base}
	if p.BasePrice != nil {
		q.Base = *p.BasePrice
		q.Configured = true
	}
	if p.Markup != nil {
		q.Adjustment = *p.Markup
	}
	q.Price = KitPrice(q.Base, q.Adjustment)
	return q
}

// EntryQuote prices the entry fee from a field's pricing channel.
func (d Defaults) EntryQuote(p domain.Pricing, fieldBase float64) Quote {
	base := d.EntryBaseFee
	if fieldBase > 0 {
		base = fieldBase
	}
	q := Quote{Base: base}
	if p.BaseFee != nil {
		q.Base = *p.BaseFee
		q.Configured = true
	}
	if p.Adjustment != nil {
		q.Adjustment = *p.Adjustment
	}
	q.Price = EntryFee(q.Base, q.Adjustment)
	return q
}

// =============================================================================
// Channel Updates
// =============================================================================

// ApplyKitConfig records a loaded base price. An already loaded base is kept,
// and the markup defaults to zero when unset.
func ApplyKitConfig(p domain.Pricing, basePrice float64) domain.Pricing {
	out := p.Clone()
	if out.BasePrice == nil {
		out.BasePrice = domain.Float(basePrice)
	}
	if out.Markup == nil {
		out.Markup = domain.Float(0)
	}
	return out
}

// ApplyEntryConfig records a loaded base fee, keeping an existing one.
func ApplyEntryConfig(p domain.Pricing, baseFee float64) domain.Pricing {
	out := p.Clone()
	if out.BaseFee == nil {
		out.BaseFee = domain.Float(baseFee)
	}
	if out.Adjustment == nil {
		out.Adjustment = domain.Float(0)
	}
	return out
}

// SetBasePrice replaces only the base price.
func SetBasePrice(p domain.Pricing, basePrice float64) domain.Pricing {
	out := p.Clone()
	out.BasePrice = domain.Float(basePrice)
	return out
}

// SetMarkup replaces only the markup.
func SetMarkup(p domain.Pricing, markup float64) domain.Pricing {
	out := p.Clone()
	out.Markup = domain.Float(markup)
	return out
}

// SetBaseFee replaces only the base fee.
func SetBaseFee(p domain.Pricing, baseFee float64) domain.Pricing {
	out := p.Clone()
	out.BaseFee = domain.Float(baseFee)
	return out
}

// SetAdjustment replaces only the entry fee adjustment.
func SetAdjustment(p domain.Pricing, adjustment float64) domain.Pricing {
	out := p.Clone()
	out.Adjustment = domain.Float(adjustment)
	return out
}

// =============================================================================
// Team Inheritance
// =============================================================================

// TeamKitQuote prices a player's kit from the selected team's own submission.
// Teams set their markup once during registration; every player registering
// under the team inherits it. kitFieldID is the team template's kit-pricing
// field. Missing teams or values fall back to fallbackBase and zero markup.
func (d Defaults) TeamKitQuote(teamID string, teams []domain.SubmissionRecord, kitFieldID string, fallbackBase float64) Quote {
	p := domain.Pricing{}
	for _, rec := range teams {
		if rec.ID != teamID || teamID == "" {
			continue
		}
		if v, ok := rec.Number(domain.SubKey(kitFieldID, domain.SuffixBasePrice).String()); ok {
			p.BasePrice = domain.Float(v)
		}
		if v, ok := rec.Number(domain.SubKey(kitFieldID, domain.SuffixMarkup).String()); ok {
			p.Markup = domain.Float(v)
		}
		break
	}
	return d.KitQuote(p, fallbackBase)
}
