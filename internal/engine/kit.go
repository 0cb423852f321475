package engine

import (
	"context"
	"fmt"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/pricing"
)

// kitField returns the basic kit product-bundle field.
func (e *Engine) kitField() (domain.Field, bool) {
	fields := forms.FieldsOfType(e.tmpl, domain.FieldProductBundle)
	if len(fields) == 0 {
		return domain.Field{}, false
	}
	return fields[0], true
}

// kitSizeLabel renders the selected kit sizes. It returns false until every
// size the bundle asks for is chosen.
func kitSizeLabel(f domain.Field, s domain.Sizes) (string, bool) {
	if f.IsEquipmentBundle() {
		if s.Shirt == "" || s.Pants == "" {
			return "", false
		}
		return fmt.Sprintf("Shirt: %s / Pants: %s", s.Shirt, s.Pants), true
	}
	return s.Size, s.Size != ""
}

// reconcileKit keeps exactly one basic-kit cart line in step with the
// chosen sizes once the respondent has reached the kit page. Incomplete
// sizes remove the line. The cart returns the same snapshot when nothing
// changed, so repeated calls are free.
func (e *Engine) reconcileKit(ctx context.Context) {
	if e.deps.Cart == nil || e.submitted {
		return
	}
	f, ok := e.kitField()
	if !ok {
		return
	}
	page := e.pageIndexOf(f.ID)
	if page == 0 || e.currentPage < page {
		return
	}

	v := e.values.Get(f.ID)
	size, complete := kitSizeLabel(f, v.Sizes)
	if !complete {
		e.deps.Cart.SyncKitItems(ctx, nil)
		return
	}

	q, fromTeam := e.bundleQuote(f)
	if fromTeam {
		v.Pricing.BasePrice = domain.Float(q.Base)
		v.Pricing.Markup = domain.Float(q.Adjustment)
		e.setValue(f.ID, v)
	}

	e.deps.Cart.SyncKitItems(ctx, []domain.CartItem{{
		ID:           domain.BasicKitID,
		Name:         f.Label,
		Price:        q.Price,
		Quantity:     1,
		SelectedSize: size,
		Description:  f.Description,
	}})
}

// bundleQuote prices the basic kit. The selected team's own kit settings
// win; then the value's stored pricing; then the league configuration;
// then the field's declared base. fromTeam is true when the team's
// submission was found.
func (e *Engine) bundleQuote(f domain.Field) (pricing.Quote, bool) {
	fallback := f.BasePrice
	if e.kitConfig != nil && e.kitConfig.BasePrice > 0 {
		fallback = e.kitConfig.BasePrice
	}

	if dd, ok := e.teamDropdown(); ok {
		teamID := e.values.Get(dd.ID).Text
		records := e.sources[dd.ID]
		if src := e.sourceTemplate(dd); src != nil && findRecord(records, teamID) != nil {
			if kits := forms.FieldsOfType(src, domain.FieldKitPricing); len(kits) > 0 {
				return e.deps.Pricing.TeamKitQuote(teamID, records, kits[0].ID, fallback), true
			}
		}
	}
	return e.deps.Pricing.KitQuote(e.values.Get(f.ID).Pricing, fallback), false
}

// quoteFor prices a kit, bundle or entry fee field for display.
func (e *Engine) quoteFor(f domain.Field) pricing.Quote {
	v := e.values.Get(f.ID)
	switch f.Type {
	case domain.FieldProductBundle:
		q, _ := e.bundleQuote(f)
		return q
	case domain.FieldEntryFeePricing:
		return e.deps.Pricing.EntryQuote(v.Pricing, f.BasePrice)
	}
	return e.deps.Pricing.KitQuote(v.Pricing, f.BasePrice)
}
