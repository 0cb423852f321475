// Package domain contains core business types and interfaces.
//
// This file defines the declarative form template model: templates, pages
// and typed fields. Templates are pure data; behavior lives in the forms
// and engine packages.
package domain

// =============================================================================
// Field Types
// =============================================================================

// FieldType identifies how a field is rendered, validated and serialized.
// The set is closed; templates naming any other type are rejected at load.
type FieldType string

const (
	FieldText               FieldType = "text"
	FieldEmail              FieldType = "email"
	FieldTel                FieldType = "tel"
	FieldNumber             FieldType = "number"
	FieldPassword           FieldType = "password"
	FieldDate               FieldType = "date"
	FieldFile               FieldType = "file"
	FieldTextarea           FieldType = "textarea"
	FieldRadio              FieldType = "radio"
	FieldCheckbox           FieldType = "checkbox"
	FieldCheckboxGroup      FieldType = "checkbox-group"
	FieldSelect             FieldType = "select"
	FieldImageSelect        FieldType = "image-select"
	FieldImageSelectLibrary FieldType = "image-select-library"
	FieldSubmissionDropdown FieldType = "submission-dropdown"
	FieldSubTeamSelector    FieldType = "sub-team-selector"
	FieldDynamicTeamEntries FieldType = "dynamic-team-entries"
	FieldProductBundle      FieldType = "product-bundle"
	FieldUpsellProducts     FieldType = "upsell-products"
	FieldSupporterApparel   FieldType = "supporter-apparel"
	FieldKitPricing         FieldType = "kit-pricing"
	FieldEntryFeePricing    FieldType = "entry-fee-pricing"
	FieldCheckoutForm       FieldType = "checkout-form"
)

// AllFieldTypes lists every recognized field type in declaration order.
var AllFieldTypes = []FieldType{
	FieldText, FieldEmail, FieldTel, FieldNumber, FieldPassword, FieldDate,
	FieldFile, FieldTextarea, FieldRadio, FieldCheckbox, FieldCheckboxGroup,
	FieldSelect, FieldImageSelect, FieldImageSelectLibrary,
	FieldSubmissionDropdown, FieldSubTeamSelector, FieldDynamicTeamEntries,
	FieldProductBundle, FieldUpsellProducts, FieldSupporterApparel,
	FieldKitPricing, FieldEntryFeePricing, FieldCheckoutForm,
}

// IsValid returns true if the type is part of the closed set.
func (t FieldType) IsValid() bool {
	for _, known := range AllFieldTypes {
		if t == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the type.
func (t FieldType) String() string {
	return string(t)
}

// =============================================================================
// Template Types
// =============================================================================

// FormTemplate describes a (possibly multi-page) registration form.
type FormTemplate struct {
	ID            int            `yaml:"id" json:"id"`
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description,omitempty"`
	Kind          FormKind       `yaml:"kind" json:"kind,omitempty"`
	CategoryIDs   []int          `yaml:"categoryIds" json:"categoryIds,omitempty"`
	Active        bool           `yaml:"active" json:"active"`
	MultiPage     bool           `yaml:"multiPage" json:"multiPage"`
	Pages         []Page         `yaml:"pages" json:"pages,omitempty"`
	Fields        []Field        `yaml:"fields" json:"fields,omitempty"`
	PageOverrides []PageOverride `yaml:"pageOverrides" json:"pageOverrides,omitempty"`
}

// FormKind tags templates whose validation carries extra cross-submission
// checks. Generic templates leave it empty.
type FormKind string

const (
	FormKindTeamRegistration   FormKind = "team-registration"
	FormKindPlayerRegistration FormKind = "player-registration"
)

// IsMultiPage returns true if the template is rendered page by page.
func (t *FormTemplate) IsMultiPage() bool {
	return t.MultiPage && len(t.Pages) > 0
}

// Page is one step of a multi-page template.
type Page struct {
	PageID int     `yaml:"pageId" json:"pageId"`
	Title  string  `yaml:"title" json:"title"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// PageOverride pins fields to the top of a page regardless of their order.
type PageOverride struct {
	PageID   int      `yaml:"pageId" json:"pageId"`
	PinFirst []string `yaml:"pinFirst" json:"pinFirst"`
}

// Field is a single typed input within a template.
type Field struct {
	ID          string    `yaml:"id" json:"id"`
	Type        FieldType `yaml:"type" json:"type"`
	Label       string    `yaml:"label" json:"label"`
	Description string    `yaml:"description" json:"description,omitempty"`
	Placeholder string    `yaml:"placeholder" json:"placeholder,omitempty"`
	HelpText    string    `yaml:"helpText" json:"helpText,omitempty"`
	Required    bool      `yaml:"required" json:"required"`
	Order       float64   `yaml:"order" json:"order"`
	Options     []string  `yaml:"options" json:"options,omitempty"`
	Min         *int      `yaml:"min" json:"min,omitempty"`
	Max         *int      `yaml:"max" json:"max,omitempty"`
	DependsOn   string    `yaml:"dependsOn" json:"dependsOn,omitempty"`

	// DefaultValue is applied on load when the field has no value.
	DefaultValue string `yaml:"defaultValue" json:"defaultValue,omitempty"`

	// Unique marks identity fields (team name, team email) checked against
	// prior submissions of the same template.
	Unique bool `yaml:"unique" json:"unique,omitempty"`

	// JerseyNumber marks the shirt number field checked for collisions
	// within a team's sub-team.
	JerseyNumber bool `yaml:"jerseyNumber" json:"jerseyNumber,omitempty"`

	IncludeColorPickers bool `yaml:"includeColorPickers" json:"includeColorPickers,omitempty"`

	AutofillFromSubmission        bool   `yaml:"autofillFromSubmission" json:"autofillFromSubmission,omitempty"`
	AutofillSourceFormID          int    `yaml:"autofillSourceFormId" json:"autofillSourceFormId,omitempty"`
	AutofillSourceFieldID         string `yaml:"autofillSourceFieldId" json:"autofillSourceFieldId,omitempty"`
	AutofillLinkedDropdownFieldID string `yaml:"autofillLinkedDropdownFieldId" json:"autofillLinkedDropdownFieldId,omitempty"`

	SourceFormID   int            `yaml:"sourceFormId" json:"sourceFormId,omitempty"`
	DisplayFieldID string         `yaml:"displayFieldId" json:"displayFieldId,omitempty"`
	PrefillFields  []PrefillField `yaml:"prefillFields" json:"prefillFields,omitempty"`

	BasePrice        float64  `yaml:"basePrice" json:"basePrice,omitempty"`
	SizeOptions      []string `yaml:"sizeOptions" json:"sizeOptions,omitempty"`
	ShirtSizeOptions []string `yaml:"shirtSizeOptions" json:"shirtSizeOptions,omitempty"`
	PantsSizeOptions []string `yaml:"pantsSizeOptions" json:"pantsSizeOptions,omitempty"`
}

// PrefillField copies a source submission value into the side-channel
// prefilled data when a submission-dropdown selection is made.
type PrefillField struct {
	SourceFieldID    string `yaml:"sourceFieldId" json:"sourceFieldId"`
	SourceFieldLabel string `yaml:"sourceFieldLabel" json:"sourceFieldLabel"`
}

// IsEquipmentBundle returns true if a product-bundle field asks for separate
// shirt and pants sizes instead of a single size.
func (f *Field) IsEquipmentBundle() bool {
	return len(f.ShirtSizeOptions) > 0 || len(f.PantsSizeOptions) > 0
}

// HasColorPickers returns true if the field collects its own colors, i.e.
// an image-select-library with pickers that is not autofilled.
func (f *Field) HasColorPickers() bool {
	return f.Type == FieldImageSelectLibrary && f.IncludeColorPickers && !f.AutofillFromSubmission
}

// CheckoutFieldNames are the sub-fields every checkout-form must collect.
var CheckoutFieldNames = []string{
	"checkout_email",
	"checkout_password",
	"checkout_firstName",
	"checkout_lastName",
	"checkout_phone",
	"checkout_address",
	"checkout_city",
	"checkout_province",
	"checkout_postalCode",
	"checkout_country",
}
