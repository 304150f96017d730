package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Items
// ============================================================================

func TestProductSnapshot_UnitPrice(t *testing.T) {
	p := ProductSnapshot{Price: decimal.RequireFromString("20"), DiscountPrice: decimal.RequireFromString("15.5")}
	assert.True(t, p.UnitPrice().Equal(decimal.RequireFromString("15.5")))

	p.DiscountPrice = decimal.Zero
	assert.True(t, p.UnitPrice().Equal(decimal.RequireFromString("20")))
}

func TestNewLineItem_Snapshot(t *testing.T) {
	p := ProductSnapshot{
		ProductID: "prod-1", Name: "Lamp", ImageURL: "lamp.jpg", VendorID: "vendor-1",
		Price: decimal.NewFromInt(40), Stock: 7,
	}
	item := NewLineItem(p, 2)

	assert.Equal(t, "prod-1", item.ProductID)
	assert.Equal(t, "Lamp", item.Name)
	assert.Equal(t, "vendor-1", item.VendorID)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, 7, item.StockAtAddTime)
	assert.True(t, item.Subtotal().Equal(decimal.NewFromInt(80)))
}

func TestTotalOf(t *testing.T) {
	items := []LineItem{
		{ProductID: "a", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		{ProductID: "b", UnitPrice: decimal.RequireFromString("5.5"), Quantity: 1},
	}
	assert.Equal(t, "25.50", TotalOf(items).StringFixed(2))
	assert.True(t, TotalOf(nil).IsZero())
}

func TestWishlistItem_LineItem(t *testing.T) {
	w := NewWishlistItem(ProductSnapshot{ProductID: "p", Name: "Mug", VendorID: "v", Price: decimal.NewFromInt(3), Stock: 2})
	li := w.LineItem(1)
	assert.Equal(t, "p", li.ProductID)
	assert.Equal(t, 1, li.Quantity)
	assert.Equal(t, 2, li.StockAtAddTime)
}

func TestCloneItems_Independent(t *testing.T) {
	orig := []LineItem{{ProductID: "a", Quantity: 1}}
	cp := CloneItems(orig)
	cp[0].Quantity = 9
	assert.Equal(t, 1, orig[0].Quantity)
	assert.Nil(t, CloneItems(nil))
}

// ============================================================================
// Addresses
// ============================================================================

func TestDefaultAddress(t *testing.T) {
	work := SavedAddress{ID: "1", ShippingAddress: ShippingAddress{City: "Lund", AddressType: "Work"}}
	home := SavedAddress{ID: "2", ShippingAddress: ShippingAddress{City: "Malmo", AddressType: "home"}}

	got, ok := DefaultAddress([]SavedAddress{work, home})
	require.True(t, ok)
	assert.Equal(t, "Malmo", got.City)

	got, ok = DefaultAddress([]SavedAddress{work})
	require.True(t, ok)
	assert.Equal(t, "Lund", got.City)

	_, ok = DefaultAddress(nil)
	assert.False(t, ok)
}

// ============================================================================
// Checkout
// ============================================================================

func TestIsValidPaymentMethod(t *testing.T) {
	for _, m := range PaymentMethods() {
		assert.True(t, IsValidPaymentMethod(m))
	}
	assert.False(t, IsValidPaymentMethod(""))
	assert.False(t, IsValidPaymentMethod("bitcoin"))
}

func TestCheckoutSnapshot_Status(t *testing.T) {
	addr := &ShippingAddress{Country: "SE"}
	items := []LineItem{{ProductID: "a", Quantity: 1}}

	assert.Equal(t, StatusEmpty, CheckoutSnapshot{ShippingAddress: addr, PaymentMethod: PaymentPayPal}.Status())
	assert.Equal(t, StatusAddressing, CheckoutSnapshot{OrderItems: items}.Status())
	assert.Equal(t, StatusPaymentSelection, CheckoutSnapshot{OrderItems: items, ShippingAddress: addr}.Status())
	assert.Equal(t, StatusReadyToSubmit, CheckoutSnapshot{OrderItems: items, ShippingAddress: addr, PaymentMethod: PaymentPayPal}.Status())
}

func TestStatus_CanSubmit(t *testing.T) {
	assert.True(t, StatusReadyToSubmit.CanSubmit())
	assert.True(t, StatusFailed.CanSubmit())
	assert.False(t, StatusSubmitting.CanSubmit())
	assert.False(t, StatusPaymentSelection.CanSubmit())
}

// ============================================================================
// Orders
// ============================================================================

func TestOrder_UnmarshalJSON_IDVariants(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"abc","status":"processing","totalPrice":25.5}`), &o))
	assert.Equal(t, "abc", o.ID)
	assert.Equal(t, 25.5, o.TotalPrice)
	assert.NotEmpty(t, o.Raw)

	var o2 Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"xyz"}`), &o2))
	assert.Equal(t, "xyz", o2.ID)
}
