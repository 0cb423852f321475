package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/DukeRupert/leaguekit/internal/domain"
	"github.com/DukeRupert/leaguekit/internal/forms"
	"github.com/DukeRupert/leaguekit/internal/pricing"
	"github.com/DukeRupert/leaguekit/internal/uniqueness"
)

// Mutation is the wire form of a single field change.
type Mutation struct {
	Op      string             `json:"op" validate:"required,oneof=setText setList toggleOption setEntries setSubTeam setColor setSize setBasePrice setMarkup setBaseFee setAdjustment setCheckout selectSubmission"`
	FieldID string             `json:"fieldId" validate:"required,max=64"`
	Suffix  string             `json:"suffix,omitempty"`
	Text    string             `json:"text,omitempty"`
	List    []string           `json:"list,omitempty" validate:"max=100"`
	Option  string             `json:"option,omitempty"`
	Checked bool               `json:"checked,omitempty"`
	Entries []domain.TeamEntry `json:"entries,omitempty" validate:"max=50"`
	SubTeam *domain.SubTeam    `json:"subTeam,omitempty"`
	Number  *float64           `json:"number,omitempty"`
	Name    string             `json:"name,omitempty"`
}

// Apply dispatches a Mutation to the matching setter.
func (e *Engine) Apply(ctx context.Context, m Mutation) (Outcome, error) {
	number := func() (float64, error) {
		if m.Number == nil {
			return 0, domain.Invalid("Engine.Apply", "a number is required")
		}
		return *m.Number, nil
	}

	switch m.Op {
	case "setText":
		return e.SetText(ctx, m.FieldID, m.Text)
	case "setList":
		return e.SetList(ctx, m.FieldID, m.List)
	case "toggleOption":
		return e.ToggleOption(ctx, m.FieldID, m.Option, m.Checked)
	case "setEntries":
		return e.SetEntries(ctx, m.FieldID, m.Entries)
	case "setSubTeam":
		return e.SetSubTeam(ctx, m.FieldID, m.SubTeam)
	case "setColor":
		return e.SetColor(ctx, m.FieldID, domain.Suffix(m.Suffix), m.Text)
	case "setSize":
		return e.SetSize(ctx, m.FieldID, domain.Suffix(m.Suffix), m.Text)
	case "setBasePrice", "setMarkup", "setBaseFee", "setAdjustment":
		n, err := number()
		if err != nil {
			return Outcome{}, err
		}
		switch m.Op {
		case "setBasePrice":
			return e.SetBasePrice(ctx, m.FieldID, n)
		case "setMarkup":
			return e.SetMarkup(ctx, m.FieldID, n)
		case "setBaseFee":
			return e.SetBaseFee(ctx, m.FieldID, n)
		default:
			return e.SetAdjustment(ctx, m.FieldID, n)
		}
	case "setCheckout":
		return e.SetCheckout(ctx, m.FieldID, m.Name, m.Text)
	case "selectSubmission":
		return e.SelectSubmission(ctx, m.FieldID, m.Text)
	}
	return Outcome{}, domain.Errorf(domain.EINVALID, "Engine.Apply", "unknown operation %q", m.Op)
}

// =============================================================================
// Mutation Plumbing
// =============================================================================

// rejection is an input refused at entry. It becomes an inline message on
// key rather than an error.
type rejection struct {
	key domain.FieldKey
	msg string
}

func (r *rejection) Error() string { return r.msg }

func typeIn(types ...domain.FieldType) func(domain.FieldType) bool {
	return func(t domain.FieldType) bool {
		return slices.Contains(types, t)
	}
}

var textTypes = typeIn(
	domain.FieldText, domain.FieldEmail, domain.FieldTel, domain.FieldNumber,
	domain.FieldDate, domain.FieldTextarea, domain.FieldRadio, domain.FieldSelect,
	domain.FieldImageSelect, domain.FieldImageSelectLibrary,
	domain.FieldPassword, domain.FieldFile,
)

var listTypes = typeIn(
	domain.FieldCheckbox, domain.FieldCheckboxGroup,
	domain.FieldUpsellProducts, domain.FieldSupporterApparel,
)

// mutate applies fn to a copy of the field's value and commits it. The
// caller must not hold the lock.
func (e *Engine) mutate(ctx context.Context, op, fieldID string, allowed func(domain.FieldType) bool, fn func(f domain.Field, v *domain.Value) error) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitted {
		return Outcome{}, domain.Invalid(op, "This form has already been submitted.")
	}
	f, ok := e.field(fieldID)
	if !ok {
		return Outcome{}, domain.NotFound(op, "field", fieldID)
	}
	if !allowed(f.Type) {
		return Outcome{}, domain.Errorf(domain.EINVALID, op, "field %s of type %s does not accept this change", f.ID, f.Type)
	}

	v := e.values.Get(fieldID).Clone()
	if err := fn(f, &v); err != nil {
		if r, ok := err.(*rejection); ok {
			e.errors[r.key] = r.msg
			return Outcome{Page: e.currentPage, FocusKey: r.key.String(), Alert: r.msg}, nil
		}
		return Outcome{}, err
	}

	e.setValue(fieldID, v)
	e.afterChange(ctx, fieldID)
	return Outcome{Page: e.currentPage}, nil
}

func (e *Engine) setValue(fieldID string, v domain.Value) {
	if v.IsZero() {
		delete(e.values, fieldID)
		return
	}
	e.values[fieldID] = v
}

// afterChange clears the flags of the touched fields that are now valid,
// then reconciles the kit and persists the draft.
func (e *Engine) afterChange(ctx context.Context, fieldIDs ...string) {
	e.refreshErrors(fieldIDs...)
	e.reconcileKit(ctx)
	e.saveDraft(ctx)
}

func (e *Engine) refreshErrors(fieldIDs ...string) {
	if len(e.errors) == 0 {
		return
	}
	touched := make(map[string]bool, len(fieldIDs))
	for _, id := range fieldIDs {
		touched[id] = true
	}
	for _, f := range e.orderedFields() {
		if f.DependsOn != "" && touched[f.DependsOn] {
			touched[f.ID] = true
		}
	}
	if e.touchesJerseyScope(touched) {
		for _, f := range e.orderedFields() {
			if f.JerseyNumber {
				touched[f.ID] = true
			}
		}
	}

	for key := range e.errors {
		if !touched[key.FieldID] {
			continue
		}
		f, ok := e.field(key.FieldID)
		if !ok {
			delete(e.errors, key)
			continue
		}
		if !slices.Contains(e.missingFor(f), key) {
			delete(e.errors, key)
		}
	}
}

// touchesJerseyScope reports whether the team or sub-team a jersey number is
// checked against has changed.
func (e *Engine) touchesJerseyScope(touched map[string]bool) bool {
	if dd, ok := e.teamDropdown(); ok && touched[dd.ID] {
		return true
	}
	for _, f := range forms.FieldsOfType(e.tmpl, domain.FieldSubTeamSelector) {
		if touched[f.ID] {
			return true
		}
	}
	return false
}

// =============================================================================
// Setters
// =============================================================================

// SetText sets a scalar field. Numbers must parse and respect the field's
// bounds; choice fields only accept their declared options.
func (e *Engine) SetText(ctx context.Context, fieldID, text string) (Outcome, error) {
	const op = "Engine.SetText"
	return e.mutate(ctx, op, fieldID, textTypes, func(f domain.Field, v *domain.Value) error {
		if text != "" {
			if err := checkText(f, text); err != nil {
				return err
			}
		}
		v.Text = text
		e.truncateEntries(f.ID, text)
		return nil
	})
}

func checkText(f domain.Field, text string) error {
	switch f.Type {
	case domain.FieldNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return &rejection{domain.Key(f.ID), "Please enter a valid number."}
		}
		if (f.Min != nil && n < float64(*f.Min)) || (f.Max != nil && n > float64(*f.Max)) {
			return &rejection{domain.Key(f.ID), rangeMessage(f)}
		}
	case domain.FieldRadio, domain.FieldSelect:
		if len(f.Options) > 0 && !slices.Contains(f.Options, text) {
			return &rejection{domain.Key(f.ID), "Please choose one of the listed options."}
		}
	}
	return nil
}

func rangeMessage(f domain.Field) string {
	switch {
	case f.Min != nil && f.Max != nil:
		return fmt.Sprintf("Please enter a number between %d and %d.", *f.Min, *f.Max)
	case f.Min != nil:
		return fmt.Sprintf("Please enter a number of at least %d.", *f.Min)
	default:
		return fmt.Sprintf("Please enter a number no greater than %d.", *f.Max)
	}
}

// truncateEntries drops team entries beyond a lowered count.
func (e *Engine) truncateEntries(countFieldID, text string) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return
	}
	for _, f := range e.orderedFields() {
		if f.Type != domain.FieldDynamicTeamEntries || f.DependsOn != countFieldID {
			continue
		}
		v := e.values.Get(f.ID)
		if len(v.Entries) > n {
			v.Entries = v.Entries[:n]
			e.setValue(f.ID, v)
		}
	}
}

// SetList replaces the selections of a multi-choice or product field.
func (e *Engine) SetList(ctx context.Context, fieldID string, list []string) (Outcome, error) {
	const op = "Engine.SetList"
	return e.mutate(ctx, op, fieldID, listTypes, func(f domain.Field, v *domain.Value) error {
		out := make([]string, 0, len(list))
		for _, item := range list {
			if len(f.Options) > 0 && !slices.Contains(f.Options, item) {
				return &rejection{domain.Key(f.ID), "Please choose from the listed options."}
			}
			if !slices.Contains(out, item) {
				out = append(out, item)
			}
		}
		v.List = out
		v.Text = ""
		return nil
	})
}

// ToggleOption adds or removes one option of a checkbox field.
func (e *Engine) ToggleOption(ctx context.Context, fieldID, option string, checked bool) (Outcome, error) {
	const op = "Engine.ToggleOption"
	return e.mutate(ctx, op, fieldID, listTypes, func(f domain.Field, v *domain.Value) error {
		if len(f.Options) > 0 && !slices.Contains(f.Options, option) {
			return &rejection{domain.Key(f.ID), "Please choose from the listed options."}
		}
		has := slices.Contains(v.List, option)
		switch {
		case checked && !has:
			v.List = append(v.List, option)
		case !checked && has:
			v.List = slices.DeleteFunc(v.List, func(s string) bool { return s == option })
		}
		return nil
	})
}

// SetEntries replaces the age-group team entries. Entries beyond the
// declared count are dropped.
func (e *Engine) SetEntries(ctx context.Context, fieldID string, entries []domain.TeamEntry) (Outcome, error) {
	const op = "Engine.SetEntries"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldDynamicTeamEntries), func(f domain.Field, v *domain.Value) error {
		out := make([]domain.TeamEntry, len(entries))
		for i, en := range entries {
			en.TeamName = strings.TrimSpace(en.TeamName)
			out[i] = en
		}
		if f.DependsOn != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(e.values.Get(f.DependsOn).Text)); err == nil && n >= 0 && len(out) > n {
				out = out[:n]
			}
		}
		v.Entries = out
		return nil
	})
}

// SetSubTeam selects the age-group team within the selected team. A nil
// sub-team clears the selection.
func (e *Engine) SetSubTeam(ctx context.Context, fieldID string, st *domain.SubTeam) (Outcome, error) {
	const op = "Engine.SetSubTeam"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldSubTeamSelector), func(f domain.Field, v *domain.Value) error {
		if st == nil || st.TeamName == "" {
			v.SubTeam = nil
			return nil
		}
		if options := e.subTeamOptions(f); len(options) > 0 && !slices.Contains(options, *st) {
			return &rejection{domain.Key(f.ID), "Please choose one of your team's age group teams."}
		}
		chosen := *st
		v.SubTeam = &chosen
		return nil
	})
}

// SetColor sets one color channel of a design field. White is refused at
// entry. Autofilled design fields inherit their colors and refuse edits.
func (e *Engine) SetColor(ctx context.Context, fieldID string, suffix domain.Suffix, hex string) (Outcome, error) {
	const op = "Engine.SetColor"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldImageSelectLibrary), func(f domain.Field, v *domain.Value) error {
		if f.AutofillFromSubmission {
			return domain.Invalid(op, "Kit colors are inherited from the selected team.")
		}
		if !slices.Contains(colorSuffixes, suffix) {
			return domain.Errorf(domain.EINVALID, op, "unknown color channel %q", suffix)
		}
		hex = strings.TrimSpace(hex)
		if hex != "" {
			if err := uniqueness.CheckColor(op, hex); err != nil {
				return &rejection{domain.SubKey(f.ID, suffix), domain.ErrorMessage(err)}
			}
		}
		v.Colors = v.Colors.WithChannel(suffix, hex)
		return nil
	})
}

// SetSize sets a kit size channel. Sizes must come from the field's lists.
func (e *Engine) SetSize(ctx context.Context, fieldID string, suffix domain.Suffix, size string) (Outcome, error) {
	const op = "Engine.SetSize"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldProductBundle), func(f domain.Field, v *domain.Value) error {
		var options []string
		switch suffix {
		case domain.SuffixShirtSize:
			options = f.ShirtSizeOptions
			v.Sizes.Shirt = size
		case domain.SuffixPantsSize:
			options = f.PantsSizeOptions
			v.Sizes.Pants = size
		case domain.SuffixSize:
			options = f.SizeOptions
			v.Sizes.Size = size
		default:
			return domain.Errorf(domain.EINVALID, op, "unknown size channel %q", suffix)
		}
		if size != "" && len(options) > 0 && !slices.Contains(options, size) {
			return &rejection{domain.SubKey(f.ID, suffix), "Please choose one of the listed sizes."}
		}
		return nil
	})
}

func finite(op string, n float64) error {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return domain.Invalid(op, "Please enter a valid amount.")
	}
	return nil
}

// SetBasePrice overrides the kit base price.
func (e *Engine) SetBasePrice(ctx context.Context, fieldID string, n float64) (Outcome, error) {
	const op = "Engine.SetBasePrice"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldKitPricing), func(f domain.Field, v *domain.Value) error {
		if err := finite(op, n); err != nil {
			return err
		}
		if n < 0 {
			return &rejection{domain.SubKey(f.ID, domain.SuffixBasePrice), "The base price cannot be negative."}
		}
		v.Pricing = pricing.SetBasePrice(v.Pricing, n)
		return nil
	})
}

// SetMarkup sets the team's kit markup.
func (e *Engine) SetMarkup(ctx context.Context, fieldID string, n float64) (Outcome, error) {
	const op = "Engine.SetMarkup"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldKitPricing), func(f domain.Field, v *domain.Value) error {
		if err := finite(op, n); err != nil {
			return err
		}
		v.Pricing = pricing.SetMarkup(v.Pricing, n)
		return nil
	})
}

// SetBaseFee overrides the entry base fee.
func (e *Engine) SetBaseFee(ctx context.Context, fieldID string, n float64) (Outcome, error) {
	const op = "Engine.SetBaseFee"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldEntryFeePricing), func(f domain.Field, v *domain.Value) error {
		if err := finite(op, n); err != nil {
			return err
		}
		if n < 0 {
			return &rejection{domain.SubKey(f.ID, domain.SuffixBaseFee), "The base fee cannot be negative."}
		}
		v.Pricing = pricing.SetBaseFee(v.Pricing, n)
		return nil
	})
}

// SetAdjustment sets the team's entry fee adjustment.
func (e *Engine) SetAdjustment(ctx context.Context, fieldID string, n float64) (Outcome, error) {
	const op = "Engine.SetAdjustment"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldEntryFeePricing), func(f domain.Field, v *domain.Value) error {
		if err := finite(op, n); err != nil {
			return err
		}
		v.Pricing = pricing.SetAdjustment(v.Pricing, n)
		return nil
	})
}

// SetCheckout sets one checkout sub-field such as "checkout_email".
func (e *Engine) SetCheckout(ctx context.Context, fieldID, name, value string) (Outcome, error) {
	const op = "Engine.SetCheckout"
	return e.mutate(ctx, op, fieldID, typeIn(domain.FieldCheckoutForm), func(f domain.Field, v *domain.Value) error {
		if !slices.Contains(domain.CheckoutFieldNames, name) {
			return domain.Errorf(domain.EINVALID, op, "unknown checkout field %q", name)
		}
		if v.Checkout == nil {
			v.Checkout = make(map[string]string)
		}
		if value == "" {
			delete(v.Checkout, name)
		} else {
			v.Checkout[name] = value
		}
		return nil
	})
}
