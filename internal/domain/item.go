package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is the catalog view of a product handed in when it is added
// to the cart or wishlist.
type ProductSnapshot struct {
	ProductID     string          `json:"product_id" validate:"required"`
	Name          string          `json:"name" validate:"required,max=500"`
	ImageURL      string          `json:"image_url,omitempty"`
	VendorID      string          `json:"vendor_id" validate:"required"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	Stock         int             `json:"stock" validate:"gte=0"`
}

// UnitPrice resolves the price charged for the product: the discounted price
// when one is set, the original price otherwise.
func (p ProductSnapshot) UnitPrice() decimal.Decimal {
	if p.DiscountPrice.IsPositive() {
		return p.DiscountPrice
	}
	return p.Price
}

// LineItem is a cart entry. Name, image, vendor and price are a snapshot taken
// when the product was added and are not refreshed from the catalog.
type LineItem struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	ImageURL       string          `json:"image_url,omitempty"`
	VendorID       string          `json:"vendor_id"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	StockAtAddTime int             `json:"stock_at_add_time"`
}

// NewLineItem builds a line item from a product snapshot.
func NewLineItem(p ProductSnapshot, quantity int) LineItem {
	return LineItem{
		ProductID:      p.ProductID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		VendorID:       p.VendorID,
		UnitPrice:      p.UnitPrice(),
		Quantity:       quantity,
		StockAtAddTime: p.Stock,
	}
}

// Subtotal returns unit price times quantity, unrounded.
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// WishlistItem is a wishlist entry: a product snapshot without quantity.
type WishlistItem struct {
	ProductID      string          `json:"product_id"`
	Name           string          `json:"name"`
	ImageURL       string          `json:"image_url,omitempty"`
	VendorID       string          `json:"vendor_id"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	StockAtAddTime int             `json:"stock_at_add_time"`
}

// NewWishlistItem builds a wishlist entry from a product snapshot.
func NewWishlistItem(p ProductSnapshot) WishlistItem {
	return WishlistItem{
		ProductID:      p.ProductID,
		Name:           p.Name,
		ImageURL:       p.ImageURL,
		VendorID:       p.VendorID,
		UnitPrice:      p.UnitPrice(),
		StockAtAddTime: p.Stock,
	}
}

// LineItem converts the wishlist entry into a cart line with the given quantity.
func (w WishlistItem) LineItem(quantity int) LineItem {
	return LineItem{
		ProductID:      w.ProductID,
		Name:           w.Name,
		ImageURL:       w.ImageURL,
		VendorID:       w.VendorID,
		UnitPrice:      w.UnitPrice,
		Quantity:       quantity,
		StockAtAddTime: w.StockAtAddTime,
	}
}

// TotalOf sums the subtotals of items. The result is not rounded; rounding
// happens only when a price is formatted for display.
func TotalOf(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CloneItems returns a copy of items that shares no backing array.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
