package domain

import "strings"

// AddressTypeHome marks the saved address preferred as the checkout default.
const AddressTypeHome = "Home"

// ShippingAddress is the destination of an order. Checkout keeps its own copy,
// so later edits to the saved address book do not leak into it.
type ShippingAddress struct {
	Country     string `json:"country" validate:"required"`
	State       string `json:"state,omitempty"`
	City        string `json:"city" validate:"required"`
	Street      string `json:"street" validate:"required"`
	ZipCode     string `json:"zip_code" validate:"required"`
	AddressType string `json:"address_type,omitempty"`
}

// SavedAddress is an entry of a user's address book, owned by the user profile.
type SavedAddress struct {
	ID string `json:"id"`
	ShippingAddress
}

// IsHome reports whether the address is flagged as the user's home address.
func (a ShippingAddress) IsHome() bool {
	return strings.EqualFold(strings.TrimSpace(a.AddressType), AddressTypeHome)
}

// DefaultAddress picks the checkout default from a saved address collection:
// the first home address, else the first address. ok is false for an empty
// collection.
func DefaultAddress(saved []SavedAddress) (ShippingAddress, bool) {
	if len(saved) == 0 {
		return ShippingAddress{}, false
	}
	for _, a := range saved {
		if a.IsHome() {
			return a.ShippingAddress, true
		}
	}
	return saved[0].ShippingAddress, true
}
