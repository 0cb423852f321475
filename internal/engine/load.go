package engine

import (
	"context"
	"errors"

	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/pricing"
)

// UpsellCategory is the product category offered by upsell-products fields.
const UpsellCategory = "upsell"

// fetchFunc performs one collaborator read. The returned apply runs under
// the engine lock and may be non-nil even with an error, to install a
// fallback.
type fetchFunc func(ctx context.Context) (apply func(), err error)

// Load restores the draft, applies field defaults and starts every
// collaborator fetch the template needs. It reports whether a draft was
// restored. Fetches run concurrently; use Wait to block until they finish.
// Results arriving after Close, or after ctx is done, are dropped.
func (e *Engine) Load(ctx context.Context) (restored bool) {
	e.mu.Lock()
	restored = e.restoreDraft(ctx)
	e.applyDefaults()
	e.reconcileKit(ctx)
	e.mu.Unlock()

	if e.deps.Collab == nil {
		return restored
	}

	e.spawn(ctx, "landing page", e.fetchLanding)
	if e.tmpl.Kind == domain.FormKindTeamRegistration {
		e.spawn(ctx, "banner", e.fetchBanner)
	}
	for _, f := range forms.FieldsOfType(e.tmpl, domain.FieldSubmissionDropdown) {
		e.spawn(ctx, "dropdown submissions", e.fetchSources(f))
	}
	if e.needsPrior() {
		e.spawn(ctx, "prior submissions", e.fetchPrior)
	}
	if e.hasType(domain.FieldKitPricing, domain.FieldProductBundle) {
		e.spawn(ctx, "kit pricing", e.fetchKitPricing)
	}
	if e.hasType(domain.FieldEntryFeePricing) {
		e.spawn(ctx, "entry fee settings", e.fetchEntryFee)
	}
	if e.hasType(domain.FieldImageSelectLibrary) {
		e.spawn(ctx, "shirt designs", e.fetchDesigns)
	}
	if e.hasType(domain.FieldSupporterApparel) {
		e.spawn(ctx, "supporter products", e.fetchSupporter)
	}
	if e.hasType(domain.FieldUpsellProducts) {
		e.spawn(ctx, "upsell products", e.fetchUpsell)
	}
	if e.hasType(domain.FieldProductBundle) {
		e.spawn(ctx, "kit size charts", e.fetchSizeCharts)
	}
	return restored
}

// Wait blocks until every fetch started by Load has finished or ctx is
// done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) spawn(ctx context.Context, name string, fetch fetchFunc) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		apply, err := fetch(ctx)
		if err != nil && ctx.Err() == nil {
			e.logger.Warn("collaborator fetch failed", "fetch", name, "error", err)
		}
		if apply == nil {
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.alive.Load() || ctx.Err() != nil {
			e.logger.Debug("dropping stale fetch result", "fetch", name)
			return
		}
		apply()
		e.reconcileKit(ctx)
		e.saveDraft(ctx)
	}()
}

func (e *Engine) hasType(types ...domain.FieldType) bool {
	for _, t := range types {
		if len(forms.FieldsOfType(e.tmpl, t)) > 0 {
			return true
		}
	}
	return false
}

// =============================================================================
// Fetches
// =============================================================================

func (e *Engine) fetchLanding(ctx context.Context) (func(), error) {
	p, err := e.deps.Collab.LandingPage(ctx, e.tmpl.ID)
	if errors.Is(err, collab.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		fallback := collab.DefaultLandingPage(e.tmpl.ID)
		return func() { e.landing = fallback }, err
	}
	return func() { e.landing = p }, nil
}

func (e *Engine) fetchBanner(ctx context.Context) (func(), error) {
	b, err := e.deps.Collab.TeamRegistrationBanner(ctx)
	if err != nil {
		return func() { e.banner = collab.DefaultBanner() }, err
	}
	return func() { e.banner = b }, nil
}

func (e *Engine) fetchSources(f domain.Field) fetchFunc {
	return func(ctx context.Context) (func(), error) {
		records, err := e.deps.Collab.Submissions(ctx, f.SourceFormID)
		if err != nil {
			return nil, err
		}
		return func() {
			e.sources[f.ID] = records
			if rec := e.selectedRecord(f.ID); rec != nil {
				e.applyAutofill(f, rec)
			}
		}, nil
	}
}

func (e *Engine) fetchPrior(ctx context.Context) (func(), error) {
	records, err := e.deps.Collab.Submissions(ctx, e.tmpl.ID)
	if err != nil {
		return nil, err
	}
	return func() { e.setPrior(records) }, nil
}

func (e *Engine) fetchKitPricing(ctx context.Context) (func(), error) {
	cfg, err := e.deps.Collab.KitPricing(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		e.kitConfig = &cfg
		for _, f := range forms.FieldsOfType(e.tmpl, domain.FieldKitPricing) {
			v := e.values.Get(f.ID)
			v.Pricing = pricing.ApplyKitConfig(v.Pricing, cfg.BasePrice)
			e.setValue(f.ID, v)
		}
	}, nil
}

func (e *Engine) fetchEntryFee(ctx context.Context) (func(), error) {
	cfg, err := e.deps.Collab.EntryFeeSettings(ctx)
	if err != nil {
		return nil, err
	}
	return func() {
		e.entryConfig = &cfg
		for _, f := range forms.FieldsOfType(e.tmpl, domain.FieldEntryFeePricing) {
			v := e.values.Get(f.ID)
			v.Pricing = pricing.ApplyEntryConfig(v.Pricing, cfg.BaseFee)
			e.setValue(f.ID, v)
		}
	}, nil
}

func (e *Engine) fetchDesigns(ctx context.Context) (func(), error) {
	designs, err := e.deps.Collab.ShirtDesigns(ctx, true)
	if err != nil {
		return nil, err
	}
	return func() { e.designs = designs }, nil
}

func (e *Engine) fetchSupporter(ctx context.Context) (func(), error) {
	products, err := e.deps.Collab.SupporterProducts(ctx)
	if err != nil {
		return nil, err
	}
	return func() { e.supporter = products }, nil
}

func (e *Engine) fetchUpsell(ctx context.Context) (func(), error) {
	products, err := e.deps.Collab.Products(ctx, collab.ProductFilter{Category: UpsellCategory, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return func() { e.upsell = products }, nil
}

func (e *Engine) fetchSizeCharts(ctx context.Context) (func(), error) {
	charts, err := e.deps.Collab.KitSizeCharts(ctx)
	if err != nil {
		fallback := collab.DefaultSizeCharts()
		return func() { e.sizeCharts = &fallback }, err
	}
	return func() { e.sizeCharts = &charts }, nil
}
