// Package engine drives one respondent's pass through a registration form:
// page navigation, validation, autofill, kit reconciliation with the cart,
// draft persistence and submission.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/DukeRupert/leaguekit/internal/cart"
	"github.com/DukeRupert/leaguekit/internal/collab"
	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/draft"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/media"
	"github.com/DukeRupert/leaguekit/internal/pricing"
	"github.com/DukeRupert/leaguekit/internal/uniqueness"
)

// Templates resolves the source templates referenced by dropdown and
// autofill fields.
type Templates interface {
	Get(id int) (*domain.FormTemplate, error)
}

// Deps are the collaborators an Engine works with.
type Deps struct {
	Templates Templates
	Collab    collab.Client
	Cart      *cart.Store
	Drafts    *draft.Store
	Media     media.Recompressor
	Pricing   pricing.Defaults
	Logger    *slog.Logger
}

// Outcome reports the result of a navigation or submit action.
type Outcome struct {
	Advanced    bool                `json:"advanced"`
	Submitted   bool                `json:"submitted"`
	Page        int                 `json:"page"`
	Missing     []string            `json:"missing,omitempty"`
	FocusPage   int                 `json:"focusPage,omitempty"`
	FocusKey    string              `json:"focusKey,omitempty"`
	Alert       string              `json:"alert,omitempty"`
	TeamProfile *domain.TeamProfile `json:"teamProfile,omitempty"`
}

// SummaryItem is one answered field shown after submission.
type SummaryItem struct {
	FieldID string `json:"fieldId"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

// Option is a selectable entry of a submission-dropdown.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Engine is the state machine for one form. It is safe for concurrent use;
// background loaders apply their results under the same lock as mutators.
type Engine struct {
	mu sync.Mutex

	tmpl   *domain.FormTemplate
	deps   Deps
	logger *slog.Logger

	// 1-based index into forms.PageIDs.
	currentPage int
	values      Values
	prefilled   map[string]any
	errors      map[domain.FieldKey]string
	submitted   bool
	submitting  bool
	summary     []SummaryItem

	// Loaded collaborator data.
	landing     *collab.LandingPage
	banner      *collab.Banner
	sources     map[string][]domain.SubmissionRecord
	prior       []domain.SubmissionRecord
	index       *uniqueness.Index
	kitConfig   *domain.KitPricingConfig
	entryConfig *domain.EntryFeeConfig
	designs     []collab.ShirtDesign
	supporter   []collab.Product
	upsell      []collab.Product
	sizeCharts  *collab.SizeCharts

	alive atomic.Bool
	wg    sync.WaitGroup
}

// New creates an engine for a template. Call Load to restore the draft and
// start the collaborator fetches.
func New(tmpl *domain.FormTemplate, deps Deps) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Pricing == (pricing.Defaults{}) {
		deps.Pricing = pricing.DefaultDefaults()
	}
	e := &Engine{
		tmpl:        tmpl,
		deps:        deps,
		logger:      deps.Logger.With("form_id", tmpl.ID),
		currentPage: 1,
		values:      make(Values),
		prefilled:   make(map[string]any),
		errors:      make(map[domain.FieldKey]string),
		sources:     make(map[string][]domain.SubmissionRecord),
		index:       uniqueness.Empty(),
	}
	e.alive.Store(true)
	return e
}

// Template returns the form template.
func (e *Engine) Template() *domain.FormTemplate {
	return e.tmpl
}

// Close marks the engine dead. Loader results arriving afterwards are
// dropped.
func (e *Engine) Close() {
	e.alive.Store(false)
}

// =============================================================================
// Pages
// =============================================================================

func (e *Engine) pageIDs() []int {
	return forms.PageIDs(e.tmpl)
}

func (e *Engine) totalPages() int {
	return len(e.pageIDs())
}

// pageFields returns the fields of a 1-based page index.
func (e *Engine) pageFields(page int) []domain.Field {
	ids := e.pageIDs()
	if page < 1 || page > len(ids) {
		return nil
	}
	return forms.FieldsForPage(e.tmpl, ids[page-1])
}

// orderedFields returns every field in page order, each page in display
// order.
func (e *Engine) orderedFields() []domain.Field {
	var out []domain.Field
	for i := range e.pageIDs() {
		out = append(out, e.pageFields(i+1)...)
	}
	return out
}

// pageIndexOf returns the 1-based page index holding fieldID, or 0.
func (e *Engine) pageIndexOf(fieldID string) int {
	id := forms.PageOf(e.tmpl, fieldID)
	for i, p := range e.pageIDs() {
		if p == id {
			return i + 1
		}
	}
	return 0
}

func (e *Engine) clampPage(p int) int {
	if p < 1 {
		return 1
	}
	if n := e.totalPages(); p > n {
		return n
	}
	return p
}

func (e *Engine) field(fieldID string) (domain.Field, bool) {
	return forms.FindField(e.tmpl, fieldID)
}

// =============================================================================
// View
// =============================================================================

// View is the externally visible form state.
type View struct {
	FormID            int                         `json:"formId"`
	Name              string                      `json:"name"`
	CurrentPage       int                         `json:"currentPage"`
	TotalPages        int                         `json:"totalPages"`
	PageTitle         string                      `json:"pageTitle,omitempty"`
	Fields            []domain.Field              `json:"fields"`
	Values            map[string]any              `json:"values"`
	PrefilledData     map[string]any              `json:"prefilledData"`
	ValidationErrors  []string                    `json:"validationErrors"`
	FieldMessages     map[string]string           `json:"fieldMessages,omitempty"`
	Submitted         bool                        `json:"submitted"`
	Summary           []SummaryItem               `json:"summary,omitempty"`
	LandingPage       *collab.LandingPage         `json:"landingPage,omitempty"`
	Banner            *collab.Banner              `json:"banner,omitempty"`
	Options           map[string][]Option         `json:"options,omitempty"`
	SubTeams          map[string][]domain.SubTeam `json:"subTeams,omitempty"`
	Quotes            map[string]pricing.Quote    `json:"quotes,omitempty"`
	IncludedItems     map[string][]string         `json:"includedItems,omitempty"`
	Designs           []collab.ShirtDesign        `json:"designs,omitempty"`
	SupporterProducts []collab.Product            `json:"supporterProducts,omitempty"`
	UpsellProducts    []collab.Product            `json:"upsellProducts,omitempty"`
	SizeCharts        *collab.SizeCharts          `json:"sizeCharts,omitempty"`
}

// View returns a snapshot of the current state.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		FormID:            e.tmpl.ID,
		Name:              e.tmpl.Name,
		CurrentPage:       e.currentPage,
		TotalPages:        e.totalPages(),
		Fields:            e.pageFields(e.currentPage),
		Values:            Serialize(e.tmpl, e.values),
		PrefilledData:     cloneMap(e.prefilled),
		ValidationErrors:  e.errorKeys(),
		Submitted:         e.submitted,
		Summary:           append([]SummaryItem(nil), e.summary...),
		LandingPage:       e.landing,
		Banner:            e.banner,
		Designs:           e.designs,
		SupporterProducts: e.supporter,
		UpsellProducts:    e.upsell,
		SizeCharts:        e.sizeCharts,
	}
	if e.tmpl.IsMultiPage() {
		v.PageTitle = e.tmpl.Pages[e.currentPage-1].Title
	}
	if len(e.errors) > 0 {
		v.FieldMessages = make(map[string]string, len(e.errors))
		for k, msg := range e.errors {
			if msg != "" {
				v.FieldMessages[k.String()] = msg
			}
		}
	}

	for _, f := range forms.AllFields(e.tmpl) {
		switch f.Type {
		case domain.FieldSubmissionDropdown:
			if v.Options == nil {
				v.Options = make(map[string][]Option)
			}
			v.Options[f.ID] = e.dropdownOptions(f)
		case domain.FieldSubTeamSelector:
			if v.SubTeams == nil {
				v.SubTeams = make(map[string][]domain.SubTeam)
			}
			v.SubTeams[f.ID] = e.subTeamOptions(f)
		case domain.FieldKitPricing, domain.FieldProductBundle, domain.FieldEntryFeePricing:
			if v.Quotes == nil {
				v.Quotes = make(map[string]pricing.Quote)
				v.IncludedItems = make(map[string][]string)
			}
			v.Quotes[f.ID] = e.quoteFor(f)
			v.IncludedItems[f.ID] = e.includedItemsFor(f)
		}
	}
	return v
}

// Page returns the current 1-based page index.
func (e *Engine) Page() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentPage
}

// Submitted returns true once a submission succeeded.
func (e *Engine) Submitted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitted
}

// Value returns the structured value of a field.
func (e *Engine) Value(fieldID string) domain.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.values.Get(fieldID).Clone()
}

// Prefilled returns a copy of the side-channel prefilled data.
func (e *Engine) Prefilled() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneMap(e.prefilled)
}

// ValidationErrors returns the currently flagged keys, sorted.
func (e *Engine) ValidationErrors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errorKeys()
}

// FieldMessage returns the inline message for a key.
func (e *Engine) FieldMessage(key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errors[domain.ParseFieldKey(key)]
}

func (e *Engine) errorKeys() []string {
	out := make([]string, 0, len(e.errors))
	for k := range e.errors {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}

func (e *Engine) includedItemsFor(f domain.Field) []string {
	var items []string
	switch f.Type {
	case domain.FieldKitPricing, domain.FieldProductBundle:
		if e.kitConfig != nil {
			items = e.kitConfig.IncludedItems
		}
	case domain.FieldEntryFeePricing:
		if e.entryConfig != nil {
			items = e.entryConfig.IncludedItems
		}
	}
	if len(items) == 0 {
		return append([]string(nil), domain.DefaultIncludedItems...)
	}
	return append([]string(nil), items...)
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// =============================================================================
// Serialization
// =============================================================================

// Serialize renders structured values into the external flat shape.
func Serialize(tmpl *domain.FormTemplate, vals Values) map[string]any {
	out := make(map[string]any, len(vals))
	for _, f := range forms.AllFields(tmpl) {
		v, ok := vals[f.ID]
		if !ok {
			continue
		}
		KindOf(f.Type).Serialize(f, v, out)
	}
	return out
}

// Deserialize reads structured values back from the external flat shape.
// Keys that belong to no field are ignored.
func Deserialize(tmpl *domain.FormTemplate, flat map[string]any) Values {
	out := make(Values)
	for _, f := range forms.AllFields(tmpl) {
		if v, ok := KindOf(f.Type).Deserialize(f, flat); ok {
			out[f.ID] = v
		}
	}
	return out
}

// submitPayload merges the serialized values with the prefilled data.
// Prefilled keys never collide with field keys.
func (e *Engine) submitPayload() map[string]any {
	out := Serialize(e.tmpl, e.values)
	for k, v := range e.prefilled {
		out[k] = v
	}
	return out
}

// =============================================================================
// Drafts
// =============================================================================

// draftExclusions lists keys never written to drafts.
func (e *Engine) draftExclusions() map[string]bool {
	out := map[string]bool{"checkout_password": true}
	for _, f := range forms.FieldsOfType(e.tmpl, domain.FieldPassword) {
		out[f.ID] = true
	}
	return out
}

func (e *Engine) saveDraft(ctx context.Context) {
	if e.deps.Drafts == nil || e.submitted {
		return
	}
	e.deps.Drafts.Save(ctx, e.tmpl.ID, draft.Snapshot{
		FormData:      Serialize(e.tmpl, e.values),
		PrefilledData: e.prefilled,
		CurrentPage:   e.currentPage,
	}, e.draftExclusions())
}

func (e *Engine) restoreDraft(ctx context.Context) bool {
	if e.deps.Drafts == nil {
		return false
	}
	snap, ok := e.deps.Drafts.Restore(ctx, e.tmpl.ID)
	if !ok {
		return false
	}
	e.values = Deserialize(e.tmpl, snap.FormData)
	e.prefilled = snap.PrefilledData
	e.currentPage = e.clampPage(snap.CurrentPage)
	e.logger.Debug("draft restored", "page", e.currentPage, "fields", len(e.values))
	return true
}

func (e *Engine) applyDefaults() {
	for _, f := range forms.AllFields(e.tmpl) {
		if f.DefaultValue == "" {
			continue
		}
		if _, ok := e.values[f.ID]; !ok {
			e.values[f.ID] = domain.Value{Text: f.DefaultValue}
		}
	}
}
