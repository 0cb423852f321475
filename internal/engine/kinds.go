package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

// Values holds the structured answers of a form keyed by field id.
type Values map[string]domain.Value

// Get returns the value for a field, or the zero value.
func (v Values) Get(fieldID string) domain.Value {
	return v[fieldID]
}

// Kind is the per-type strategy the engine consults for validation,
// serialization and summaries.
type Kind interface {
	// Missing returns the keys that keep a required field from being
	// complete. A nil result means the field is satisfied.
	Missing(f domain.Field, vals Values) []domain.FieldKey

	// Serialize writes the value into the external flat shape.
	Serialize(f domain.Field, v domain.Value, out map[string]any)

	// Deserialize reads the value back from the external flat shape. It
	// returns false when nothing for the field is present.
	Deserialize(f domain.Field, in map[string]any) (domain.Value, bool)

	// Summarize renders the value for the post-submission summary. It
	// returns false for types never shown there.
	Summarize(f domain.Field, v domain.Value) (string, bool)
}

var kinds = map[domain.FieldType]Kind{
	domain.FieldText:               textKind{},
	domain.FieldEmail:              textKind{},
	domain.FieldTel:                textKind{},
	domain.FieldNumber:             textKind{},
	domain.FieldDate:               textKind{},
	domain.FieldTextarea:           textKind{},
	domain.FieldRadio:              textKind{},
	domain.FieldSelect:             textKind{},
	domain.FieldImageSelect:        textKind{},
	domain.FieldSubmissionDropdown: textKind{},
	domain.FieldPassword:           secretKind{},
	domain.FieldFile:               secretKind{},
	domain.FieldCheckbox:           listKind{},
	domain.FieldCheckboxGroup:      listKind{},
	domain.FieldImageSelectLibrary: designKind{},
	domain.FieldSubTeamSelector:    subTeamKind{},
	domain.FieldDynamicTeamEntries: entriesKind{},
	domain.FieldProductBundle:      bundleKind{},
	domain.FieldUpsellProducts:     productsKind{},
	domain.FieldSupporterApparel:   productsKind{},
	domain.FieldKitPricing:         kitPricingKind{},
	domain.FieldEntryFeePricing:    entryFeeKind{},
	domain.FieldCheckoutForm:       checkoutKind{},
}

// KindOf returns the strategy for a field type. Unknown types, which the
// template loader rejects, fall back to plain text.
func KindOf(t domain.FieldType) Kind {
	if k, ok := kinds[t]; ok {
		return k
	}
	return textKind{}
}

// =============================================================================
// Scalar Kinds
// =============================================================================

type textKind struct{}

func (textKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	if strings.TrimSpace(vals.Get(f.ID).Text) == "" {
		return []domain.FieldKey{domain.Key(f.ID)}
	}
	return nil
}

func (textKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	if v.Text != "" {
		out[f.ID] = v.Text
	}
}

func (textKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	raw, ok := in[f.ID]
	if !ok || raw == nil {
		return domain.Value{}, false
	}
	return domain.Value{Text: domain.AnyToString(raw)}, true
}

func (textKind) Summarize(_ domain.Field, v domain.Value) (string, bool) {
	return v.Text, v.Text != ""
}

// secretKind is text that never appears in summaries (passwords, uploads).
type secretKind struct{ textKind }

func (secretKind) Summarize(domain.Field, domain.Value) (string, bool) {
	return "", false
}

type listKind struct{}

func (listKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	v := vals.Get(f.ID)
	if len(v.List) == 0 && strings.TrimSpace(v.Text) == "" {
		return []domain.FieldKey{domain.Key(f.ID)}
	}
	return nil
}

func (listKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	switch {
	case len(v.List) > 0:
		out[f.ID] = toAnySlice(v.List)
	case v.Text != "":
		out[f.ID] = v.Text
	}
}

func (listKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	return deserializeList(f, in)
}

func (listKind) Summarize(_ domain.Field, v domain.Value) (string, bool) {
	if len(v.List) > 0 {
		return strings.Join(v.List, ", "), true
	}
	return v.Text, v.Text != ""
}

// productsKind holds product ids chosen for the cart. Never summarized.
type productsKind struct{}

func (productsKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	if len(vals.Get(f.ID).List) == 0 {
		return []domain.FieldKey{domain.Key(f.ID)}
	}
	return nil
}

func (productsKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	if len(v.List) > 0 {
		out[f.ID] = toAnySlice(v.List)
	}
}

func (productsKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	return deserializeList(f, in)
}

func (productsKind) Summarize(domain.Field, domain.Value) (string, bool) {
	return "", false
}

func deserializeList(f domain.Field, in map[string]any) (domain.Value, bool) {
	switch t := in[f.ID].(type) {
	case []any:
		list := make([]string, 0, len(t))
		for _, item := range t {
			if s := domain.AnyToString(item); s != "" {
				list = append(list, s)
			}
		}
		return domain.Value{List: list}, true
	case []string:
		return domain.Value{List: append([]string(nil), t...)}, true
	case string:
		if t == "" {
			return domain.Value{}, false
		}
		return domain.Value{Text: t}, true
	case bool:
		return domain.Value{Text: strconv.FormatBool(t)}, t
	}
	return domain.Value{}, false
}

// =============================================================================
// Composite Kinds
// =============================================================================

var colorSuffixes = []domain.Suffix{domain.SuffixPrimaryColor, domain.SuffixSecondaryColor, domain.SuffixTrimColor}

type designKind struct{}

func (designKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	v := vals.Get(f.ID)
	var out []domain.FieldKey
	if strings.TrimSpace(v.Text) == "" {
		out = append(out, domain.Key(f.ID))
	}
	if f.HasColorPickers() {
		if v.Colors.Primary == "" {
			out = append(out, domain.SubKey(f.ID, domain.SuffixPrimaryColor))
		}
		if v.Colors.Secondary == "" {
			out = append(out, domain.SubKey(f.ID, domain.SuffixSecondaryColor))
		}
	}
	return out
}

func (designKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	if v.Text != "" {
		out[f.ID] = v.Text
	}
	for _, s := range colorSuffixes {
		if c := v.Colors.Channel(s); c != "" {
			out[domain.SubKey(f.ID, s).String()] = c
		}
	}
}

func (designKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	var v domain.Value
	found := false
	if raw, ok := in[f.ID]; ok && raw != nil {
		v.Text = domain.AnyToString(raw)
		found = true
	}
	for _, s := range colorSuffixes {
		if raw, ok := in[domain.SubKey(f.ID, s).String()]; ok {
			if c := domain.AnyToString(raw); c != "" {
				v.Colors = v.Colors.WithChannel(s, c)
				found = true
			}
		}
	}
	return v, found
}

func (designKind) Summarize(_ domain.Field, v domain.Value) (string, bool) {
	if v.Text == "" {
		return "", false
	}
	var colors []string
	for _, s := range colorSuffixes {
		if c := v.Colors.Channel(s); c != "" {
			colors = append(colors, c)
		}
	}
	if len(colors) == 0 {
		return v.Text, true
	}
	return fmt.Sprintf("%s (%s)", v.Text, strings.Join(colors, " / ")), true
}

type subTeamKind struct{}

func (subTeamKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	st := vals.Get(f.ID).SubTeam
	if st == nil || strings.TrimSpace(st.TeamName) == "" {
		return []domain.FieldKey{domain.Key(f.ID)}
	}
	return nil
}

func (subTeamKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	if v.SubTeam == nil {
		return
	}
	out[f.ID] = map[string]any{
		"teamName": v.SubTeam.TeamName,
		"gender":   v.SubTeam.Gender,
		"ageGroup": v.SubTeam.AgeGroup,
	}
}

func (subTeamKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	raw, ok := in[f.ID]
	if !ok || raw == nil {
		return domain.Value{}, false
	}
	var st domain.SubTeam
	if !decodeJSON(raw, &st) || st.TeamName == "" {
		return domain.Value{}, false
	}
	return domain.Value{SubTeam: &st}, true
}

func (subTeamKind) Summarize(_ domain.Field, v domain.Value) (string, bool) {
	if v.SubTeam == nil {
		return "", false
	}
	st := v.SubTeam
	return fmt.Sprintf("%s (%s, %s)", st.TeamName, cases.Title(language.English).String(st.Gender), st.AgeGroup), true
}

// entriesKind holds the age-group teams of a team registration. The count
// comes from the field named by DependsOn.
type entriesKind struct{}

func (entriesKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	entries := vals.Get(f.ID).Entries
	count := len(entries)
	if f.DependsOn != "" {
		n, err := strconv.Atoi(strings.TrimSpace(vals.Get(f.DependsOn).Text))
		if err != nil {
			n = 0
		}
		count = n
	}
	missing := []domain.FieldKey{domain.Key(f.ID)}
	if count <= 0 || len(entries) < count {
		return missing
	}
	for i := 0; i < count; i++ {
		if !entries[i].IsComplete() {
			return missing
		}
	}
	return nil
}

func (entriesKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	if len(v.Entries) == 0 {
		return
	}
	list := make([]any, len(v.Entries))
	for i, e := range v.Entries {
		list[i] = map[string]any{
			"teamName":     e.TeamName,
			"gender":       e.Gender,
			"ageGroup":     e.AgeGroup,
			"coachName":    e.CoachName,
			"coachContact": e.CoachContact,
		}
	}
	out[f.ID] = list
}

func (entriesKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	raw, ok := in[f.ID]
	if !ok || raw == nil {
		return domain.Value{}, false
	}
	var entries []domain.TeamEntry
	if !decodeJSON(raw, &entries) || len(entries) == 0 {
		return domain.Value{}, false
	}
	return domain.Value{Entries: entries}, true
}

func (entriesKind) Summarize(domain.Field, domain.Value) (string, bool) {
	return "", false
}

// bundleKind is the basic kit: sizes plus the price inherited from the team.
type bundleKind struct{}

func (bundleKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	s := vals.Get(f.ID).Sizes
	var out []domain.FieldKey
	if f.IsEquipmentBundle() {
		if s.Shirt == "" {
			out = append(out, domain.SubKey(f.ID, domain.SuffixShirtSize))
		}
		if s.Pants == "" {
			out = append(out, domain.SubKey(f.ID, domain.SuffixPantsSize))
		}
		return out
	}
	if s.Size == "" {
		out = append(out, domain.SubKey(f.ID, domain.SuffixSize))
	}
	return out
}

func (bundleKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	putString(out, domain.SubKey(f.ID, domain.SuffixShirtSize), v.Sizes.Shirt)
	putString(out, domain.SubKey(f.ID, domain.SuffixPantsSize), v.Sizes.Pants)
	putString(out, domain.SubKey(f.ID, domain.SuffixSize), v.Sizes.Size)
	putFloat(out, domain.SubKey(f.ID, domain.SuffixBasePrice), v.Pricing.BasePrice)
	putFloat(out, domain.SubKey(f.ID, domain.SuffixMarkup), v.Pricing.Markup)
}

func (bundleKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	var v domain.Value
	found := getString(in, domain.SubKey(f.ID, domain.SuffixShirtSize), &v.Sizes.Shirt)
	found = getString(in, domain.SubKey(f.ID, domain.SuffixPantsSize), &v.Sizes.Pants) || found
	found = getString(in, domain.SubKey(f.ID, domain.SuffixSize), &v.Sizes.Size) || found
	found = getFloat(in, domain.SubKey(f.ID, domain.SuffixBasePrice), &v.Pricing.BasePrice) || found
	found = getFloat(in, domain.SubKey(f.ID, domain.SuffixMarkup), &v.Pricing.Markup) || found
	return v, found
}

func (bundleKind) Summarize(domain.Field, domain.Value) (string, bool) {
	return "", false
}

// kitPricingKind and entryFeeKind are admin-configured display fields and
// are never missing.
type kitPricingKind struct{}

func (kitPricingKind) Missing(domain.Field, Values) []domain.FieldKey { return nil }

func (kitPricingKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	putFloat(out, domain.SubKey(f.ID, domain.SuffixBasePrice), v.Pricing.BasePrice)
	putFloat(out, domain.SubKey(f.ID, domain.SuffixMarkup), v.Pricing.Markup)
}

func (kitPricingKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	var v domain.Value
	found := getFloat(in, domain.SubKey(f.ID, domain.SuffixBasePrice), &v.Pricing.BasePrice)
	found = getFloat(in, domain.SubKey(f.ID, domain.SuffixMarkup), &v.Pricing.Markup) || found
	return v, found
}

func (kitPricingKind) Summarize(domain.Field, domain.Value) (string, bool) { return "", false }

type entryFeeKind struct{}

func (entryFeeKind) Missing(domain.Field, Values) []domain.FieldKey { return nil }

func (entryFeeKind) Serialize(f domain.Field, v domain.Value, out map[string]any) {
	putFloat(out, domain.SubKey(f.ID, domain.SuffixBaseFee), v.Pricing.BaseFee)
	putFloat(out, domain.SubKey(f.ID, domain.SuffixAdjustment), v.Pricing.Adjustment)
}

func (entryFeeKind) Deserialize(f domain.Field, in map[string]any) (domain.Value, bool) {
	var v domain.Value
	found := getFloat(in, domain.SubKey(f.ID, domain.SuffixBaseFee), &v.Pricing.BaseFee)
	found = getFloat(in, domain.SubKey(f.ID, domain.SuffixAdjustment), &v.Pricing.Adjustment) || found
	return v, found
}

func (entryFeeKind) Summarize(domain.Field, domain.Value) (string, bool) { return "", false }

// checkoutKind collects the ten checkout sub-fields. They serialize as
// top-level "checkout_*" keys.
type checkoutKind struct{}

func (checkoutKind) Missing(f domain.Field, vals Values) []domain.FieldKey {
	v := vals.Get(f.ID)
	for _, name := range domain.CheckoutFieldNames {
		if strings.TrimSpace(v.Checkout[name]) == "" {
			return []domain.FieldKey{domain.Key(f.ID)}
		}
	}
	return nil
}

func (checkoutKind) Serialize(_ domain.Field, v domain.Value, out map[string]any) {
	for _, name := range domain.CheckoutFieldNames {
		if s := v.Checkout[name]; s != "" {
			out[name] = s
		}
	}
}

func (checkoutKind) Deserialize(_ domain.Field, in map[string]any) (domain.Value, bool) {
	var v domain.Value
	for _, name := range domain.CheckoutFieldNames {
		if s := domain.AnyToString(in[name]); s != "" {
			if v.Checkout == nil {
				v.Checkout = make(map[string]string)
			}
			v.Checkout[name] = s
		}
	}
	return v, v.Checkout != nil
}

func (checkoutKind) Summarize(domain.Field, domain.Value) (string, bool) { return "", false }

// =============================================================================
// Helpers
// =============================================================================

func toAnySlice(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}

func putString(out map[string]any, k domain.FieldKey, s string) {
	if s != "" {
		out[k.String()] = s
	}
}

func putFloat(out map[string]any, k domain.FieldKey, f *float64) {
	if f != nil {
		out[k.String()] = *f
	}
}

func getString(in map[string]any, k domain.FieldKey, dst *string) bool {
	s := domain.AnyToString(in[k.String()])
	if s == "" {
		return false
	}
	*dst = s
	return true
}

func getFloat(in map[string]any, k domain.FieldKey, dst **float64) bool {
	f, ok := domain.AnyToFloat(in[k.String()])
	if !ok {
		return false
	}
	*dst = domain.Float(f)
	return true
}

// decodeJSON converts a decoded JSON value, a typed value or a JSON-encoded
// string into out.
func decodeJSON(v any, out any) bool {
	var raw []byte
	if s, ok := v.(string); ok {
		raw = []byte(s)
	} else {
		b, err := json.Marshal(v)
		if err != nil {
			return false
		}
		raw = b
	}
	return json.Unmarshal(raw, out) == nil
}
