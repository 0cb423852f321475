package domain

// BasicKitID is the reserved cart item id of the mandatory kit purchase.
const BasicKitID = "basic-kit"

// CartItem is one line in the cart. Two lines with the same ID but a
// different SelectedSize are distinct.
type CartItem struct {
	ID           string  `json:"id" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	Quantity     int     `json:"quantity" validate:"gte=1"`
	SelectedSize string  `json:"selectedSize,omitempty"`
	Description  string  `json:"description,omitempty"`
	Image        string  `json:"image,omitempty"`
}

// IsBasicKit returns true for the mandatory kit line.
func (i CartItem) IsBasicKit() bool {
	return i.ID == BasicKitID
}

// Matches reports whether the item has the given identity key.
func (i CartItem) Matches(id, selectedSize string) bool {
	return i.ID == id && i.SelectedSize == selectedSize
}

// LineTotal returns price times quantity.
func (i CartItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// KitPricingConfig is the league-wide basic kit configuration.
type KitPricingConfig struct {
	BasePrice     float64  `json:"basePrice"`
	IncludedItems []string `json:"includedItems,omitempty"`
}

// EntryFeeConfig is the league-wide entry fee configuration.
type EntryFeeConfig struct {
	BaseFee       float64  `json:"baseFee"`
	IncludedItems []string `json:"includedItems,omitempty"`
}

// DefaultIncludedItems is shown when a kit or entry fee configuration lists
// no items.
var DefaultIncludedItems = []string{
	"Full season league participation",
	"Official league jersey",
	"League insurance coverage",
	"Access to league facilities",
}
