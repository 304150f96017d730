package service

import (
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/currency"
	"github.com/utafrali/storefront/internal/domain"
)

// Pricing is the display currency of a response together with its rates.
type Pricing struct {
	Currency  string
	Rates     domain.RateTable
	converter currency.Converter
}

func (p Pricing) display(amount decimal.Decimal) string {
	return currency.Format(p.converter.DisplayPrice(amount, p.Rates, p.Currency), p.Currency)
}

// LineView is a cart line with its subtotal and display prices.
type LineView struct {
	domain.LineItem
	Subtotal         decimal.Decimal `json:"subtotal"`
	DisplayUnitPrice string          `json:"display_unit_price"`
	DisplaySubtotal  string          `json:"display_subtotal"`
}

// CartView is the cart as returned to the front end.
type CartView struct {
	Items        []LineView      `json:"items"`
	Count        int             `json:"count"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
	DisplayTotal string          `json:"display_total"`
}

// WishlistEntryView is a wishlist entry with its display price.
type WishlistEntryView struct {
	domain.WishlistItem
	InCart           bool   `json:"in_cart"`
	DisplayUnitPrice string `json:"display_unit_price"`
}

// WishlistView is the wishlist as returned to the front end.
type WishlistView struct {
	Items    []WishlistEntryView `json:"items"`
	Currency string              `json:"currency"`
}

// CheckoutView is the checkout as returned to the front end.
type CheckoutView struct {
	Status          domain.Status           `json:"status"`
	ShippingAddress *domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                  `json:"payment_method"`
	PaymentMethods  []string                `json:"payment_methods"`
	Items           []LineView              `json:"items"`
	Total           decimal.Decimal         `json:"total"`
	Currency        string                  `json:"currency"`
	DisplayTotal    string                  `json:"display_total"`
}

// MoveResult carries both collections touched by a move to the cart.
type MoveResult struct {
	Cart     *CartView     `json:"cart"`
	Wishlist *WishlistView `json:"wishlist"`
}

func lineViews(items []domain.LineItem, p Pricing) []LineView {
	views := make([]LineView, 0, len(items))
	for _, item := range items {
		sub := item.Subtotal()
		views = append(views, LineView{
			LineItem:         item,
			Subtotal:         sub,
			DisplayUnitPrice: p.display(item.UnitPrice),
			DisplaySubtotal:  p.display(sub),
		})
	}
	return views
}

func newCartView(items []domain.LineItem, p Pricing) *CartView {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	total := domain.TotalOf(items)
	return &CartView{
		Items:        lineViews(items, p),
		Count:        count,
		Total:        total,
		Currency:     p.Currency,
		DisplayTotal: p.display(total),
	}
}

func newWishlistView(items []domain.WishlistItem, inCart func(string) bool, p Pricing) *WishlistView {
	views := make([]WishlistEntryView, 0, len(items))
	for _, item := range items {
		views = append(views, WishlistEntryView{
			WishlistItem:     item,
			InCart:           inCart(item.ProductID),
			DisplayUnitPrice: p.display(item.UnitPrice),
		})
	}
	return &WishlistView{Items: views, Currency: p.Currency}
}

func newCheckoutView(status domain.Status, snap domain.CheckoutSnapshot, p Pricing) *CheckoutView {
	total := domain.TotalOf(snap.OrderItems)
	return &CheckoutView{
		Status:          status,
		ShippingAddress: snap.ShippingAddress,
		PaymentMethod:   snap.PaymentMethod,
		PaymentMethods:  domain.PaymentMethods(),
		Items:           lineViews(snap.OrderItems, p),
		Total:           total,
		Currency:        p.Currency,
		DisplayTotal:    p.display(total),
	}
}
