package domain

import (
	"strings"
)

// =============================================================================
// Field Keys
// =============================================================================

// Suffix names a sub-channel of a structured field value.
type Suffix string

const (
	SuffixNone           Suffix = ""
	SuffixPrimaryColor   Suffix = "primaryColor"
	SuffixSecondaryColor Suffix = "secondaryColor"
	SuffixTrimColor      Suffix = "trimColor"
	SuffixShirtSize      Suffix = "shirtSize"
	SuffixPantsSize      Suffix = "pantsSize"
	SuffixSize           Suffix = "size"
	SuffixBasePrice      Suffix = "basePrice"
	SuffixMarkup         Suffix = "markup"
	SuffixBaseFee        Suffix = "baseFee"
	SuffixAdjustment     Suffix = "adjustment"
)

// Suffixes is the fixed vocabulary of sub-channel suffixes.
var Suffixes = []Suffix{
	SuffixPrimaryColor, SuffixSecondaryColor, SuffixTrimColor,
	SuffixShirtSize, SuffixPantsSize, SuffixSize,
	SuffixBasePrice, SuffixMarkup, SuffixBaseFee, SuffixAdjustment,
}

// FieldKey names either a whole field or one of its sub-channels.
type FieldKey struct {
	FieldID string
	Suffix  Suffix
}

// Key returns the key for a whole field.
func Key(fieldID string) FieldKey {
	return FieldKey{FieldID: fieldID}
}

// SubKey returns the key for a field sub-channel.
func SubKey(fieldID string, suffix Suffix) FieldKey {
	return FieldKey{FieldID: fieldID, Suffix: suffix}
}

// String renders the external composite form "{fieldId}_{suffix}".
func (k FieldKey) String() string {
	if k.Suffix == SuffixNone {
		return k.FieldID
	}
	return k.FieldID + "_" + string(k.Suffix)
}

// ParseFieldKey splits an external key into field id and suffix. Keys whose
// trailing segment is not a known suffix are treated as plain field ids.
func ParseFieldKey(s string) FieldKey {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 {
		return FieldKey{FieldID: s}
	}
	suffix := Suffix(s[idx+1:])
	for _, known := range Suffixes {
		if suffix == known {
			return FieldKey{FieldID: s[:idx], Suffix: suffix}
		}
	}
	return FieldKey{FieldID: s}
}

// =============================================================================
// Structured Values
// =============================================================================

// Value is the in-progress answer for one field. Only the channels relevant
// to the field's type are populated.
type Value struct {
	Text     string            `json:"text,omitempty"`
	List     []string          `json:"list,omitempty"`
	Entries  []TeamEntry       `json:"entries,omitempty"`
	SubTeam  *SubTeam          `json:"subTeam,omitempty"`
	Colors   Colors            `json:"colors,omitempty"`
	Sizes    Sizes             `json:"sizes,omitempty"`
	Pricing  Pricing           `json:"pricing,omitempty"`
	Checkout map[string]string `json:"checkout,omitempty"`
}

// IsZero returns true if no channel carries data.
func (v Value) IsZero() bool {
	return v.Text == "" && len(v.List) == 0 && len(v.Entries) == 0 &&
		v.SubTeam == nil && v.Colors == (Colors{}) && v.Sizes == (Sizes{}) &&
		v.Pricing.IsZero() && len(v.Checkout) == 0
}

// Clone returns a deep copy so snapshots never share mutable state.
func (v Value) Clone() Value {
	out := v
	if v.List != nil {
		out.List = append([]string(nil), v.List...)
	}
	if v.Entries != nil {
		out.Entries = append([]TeamEntry(nil), v.Entries...)
	}
	if v.SubTeam != nil {
		st := *v.SubTeam
		out.SubTeam = &st
	}
	out.Pricing = v.Pricing.Clone()
	if v.Checkout != nil {
		out.Checkout = make(map[string]string, len(v.Checkout))
		for k, val := range v.Checkout {
			out.Checkout[k] = val
		}
	}
	return out
}

// Colors holds the design color channels as hex strings.
type Colors struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
	Trim      string `json:"trim,omitempty"`
}

// Channel returns the color for a color suffix.
func (c Colors) Channel(s Suffix) string {
	switch s {
	case SuffixPrimaryColor:
		return c.Primary
	case SuffixSecondaryColor:
		return c.Secondary
	case SuffixTrimColor:
		return c.Trim
	}
	return ""
}

// WithChannel returns a copy with one color channel replaced.
func (c Colors) WithChannel(s Suffix, hex string) Colors {
	switch s {
	case SuffixPrimaryColor:
		c.Primary = hex
	case SuffixSecondaryColor:
		c.Secondary = hex
	case SuffixTrimColor:
		c.Trim = hex
	}
	return c
}

// Sizes holds product sizing channels.
type Sizes struct {
	Shirt string `json:"shirt,omitempty"`
	Pants string `json:"pants,omitempty"`
	Size  string `json:"size,omitempty"`
}

// Pricing holds admin-configured price inputs. Nil means "not loaded".
type Pricing struct {
	BasePrice  *float64 `json:"basePrice,omitempty"`
	Markup     *float64 `json:"markup,omitempty"`
	BaseFee    *float64 `json:"baseFee,omitempty"`
	Adjustment *float64 `json:"adjustment,omitempty"`
}

// IsZero returns true if no price input is set.
func (p Pricing) IsZero() bool {
	return p.BasePrice == nil && p.Markup == nil && p.BaseFee == nil && p.Adjustment == nil
}

// Clone copies the pointed-to values.
func (p Pricing) Clone() Pricing {
	return Pricing{
		BasePrice:  cloneFloat(p.BasePrice),
		Markup:     cloneFloat(p.Markup),
		BaseFee:    cloneFloat(p.BaseFee),
		Adjustment: cloneFloat(p.Adjustment),
	}
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to f.
func Float(f float64) *float64 {
	return &f
}

// TeamEntry is one age-group team declared during team registration.
type TeamEntry struct {
	TeamName     string `json:"teamName"`
	Gender       string `json:"gender"`
	AgeGroup     string `json:"ageGroup"`
	CoachName    string `json:"coachName"`
	CoachContact string `json:"coachContact"`
}

// IsComplete returns true if every required entry attribute is set.
func (e TeamEntry) IsComplete() bool {
	return strings.TrimSpace(e.TeamName) != "" &&
		strings.TrimSpace(e.Gender) != "" &&
		strings.TrimSpace(e.AgeGroup) != "" &&
		strings.TrimSpace(e.CoachName) != "" &&
		strings.TrimSpace(e.CoachContact) != ""
}

// SubTeam identifies the age-group team a player registers into.
type SubTeam struct {
	TeamName string `json:"teamName"`
	Gender   string `json:"gender"`
	AgeGroup string `json:"ageGroup"`
}
