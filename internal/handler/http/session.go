package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// SessionHandler serves the cart, wishlist and checkout endpoints.
type SessionHandler struct {
	service *service.SessionService
	logger  *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(svc *service.SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ProductRequest is the catalog snapshot of a product sent by the front end.
type ProductRequest struct {
	ProductID     string          `json:"product_id" validate:"required,max=128"`
	Name          string          `json:"name" validate:"required,max=500"`
	ImageURL      string          `json:"image_url" validate:"omitempty,max=2048"`
	VendorID      string          `json:"vendor_id" validate:"required,max=128"`
	Price         decimal.Decimal `json:"price" validate:"gte=0,max_places=2"`
	DiscountPrice decimal.Decimal `json:"discount_price" validate:"gte=0,max_places=2"`
	Stock         int             `json:"stock" validate:"gte=0"`
}

func (p ProductRequest) snapshot() domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ProductID:     p.ProductID,
		Name:          p.Name,
		ImageURL:      p.ImageURL,
		VendorID:      p.VendorID,
		Price:         p.Price,
		DiscountPrice: p.DiscountPrice,
		Stock:         p.Stock,
	}
}

// AddCartItemRequest is the body of POST /api/v1/cart/items.
type AddCartItemRequest struct {
	ProductRequest
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// AddWishlistItemRequest is the body of POST /api/v1/wishlist/items.
type AddWishlistItemRequest struct {
	ProductRequest
}

// ShippingAddressRequest is the body of PUT /api/v1/checkout/shipping-address.
type ShippingAddressRequest struct {
	Country     string `json:"country" validate:"required,max=100"`
	State       string `json:"state" validate:"omitempty,max=100"`
	City        string `json:"city" validate:"required,max=100"`
	Street      string `json:"street" validate:"required,max=300"`
	ZipCode     string `json:"zip_code" validate:"required,max=20"`
	AddressType string `json:"address_type" validate:"omitempty,max=50"`
}

// ReplaceCheckoutItemsRequest is the body of PUT /api/v1/checkout/items. An
// empty list resets the checkout.
type ReplaceCheckoutItemsRequest struct {
	Items []AddCartItemRequest `json:"items" validate:"max=100,dive"`
}

func (r ReplaceCheckoutItemsRequest) lineItems() []domain.LineItem {
	items := make([]domain.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.NewLineItem(it.snapshot(), it.Quantity))
	}
	return items
}

// PaymentMethodRequest is the body of PUT /api/v1/checkout/payment-method.
type PaymentMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=cash_on_delivery credit_card paypal"`
}

func sessionFrom(r *http.Request) service.Session {
	return service.Session{
		ID:     logger.SessionIDFromContext(r.Context()),
		UserID: logger.UserIDFromContext(r.Context()),
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

// --- Cart ---

// GetCart handles GET /api/v1/cart
func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Cart(r.Context(), sessionFrom(r), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddCartItem handles POST /api/v1/cart/items
func (h *SessionHandler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	view, err := h.service.AddToCart(r.Context(), sessionFrom(r), req.snapshot(), req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// IncrementCartItem handles POST /api/v1/cart/items/{productID}/increment
func (h *SessionHandler) IncrementCartItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.IncrementCartItem)
}

// DecrementCartItem handles POST /api/v1/cart/items/{productID}/decrement
func (h *SessionHandler) DecrementCartItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.DecrementCartItem)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/{productID}
func (h *SessionHandler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.RemoveCartItem)
}

// itemAction runs a per-product operation named by the productID URL param.
func itemAction[T any](h *SessionHandler, w http.ResponseWriter, r *http.Request, op func(context.Context, service.Session, string) (T, error)) {
	view, err := op(r.Context(), sessionFrom(r), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// --- Wishlist ---

// GetWishlist handles GET /api/v1/wishlist
func (h *SessionHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Wishlist(r.Context(), sessionFrom(r), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddWishlistItem handles POST /api/v1/wishlist/items
func (h *SessionHandler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req AddWishlistItemRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	view, err := h.service.AddToWishlist(r.Context(), sessionFrom(r), req.snapshot())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, view)
}

// RemoveWishlistItem handles DELETE /api/v1/wishlist/items/{productID}
func (h *SessionHandler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.RemoveFromWishlist)
}

// MoveToCart handles POST /api/v1/wishlist/items/{productID}/move-to-cart
func (h *SessionHandler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.MoveToCart)
}

// --- Checkout ---

// GetCheckout handles GET /api/v1/checkout
func (h *SessionHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Checkout(r.Context(), sessionFrom(r), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// SetShippingAddress handles PUT /api/v1/checkout/shipping-address
func (h *SessionHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req ShippingAddressRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	view, err := h.service.SetShippingAddress(r.Context(), sessionFrom(r), domain.ShippingAddress{
		Country:     req.Country,
		State:       req.State,
		City:        req.City,
		Street:      req.Street,
		ZipCode:     req.ZipCode,
		AddressType: req.AddressType,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// SetPaymentMethod handles PUT /api/v1/checkout/payment-method
func (h *SessionHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	view, err := h.service.SetPaymentMethod(r.Context(), sessionFrom(r), req.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// ReplaceCheckoutItems handles PUT /api/v1/checkout/items
func (h *SessionHandler) ReplaceCheckoutItems(w http.ResponseWriter, r *http.Request) {
	var req ReplaceCheckoutItemsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, r, err)
		return
	}

	view, err := h.service.ReplaceCheckoutItems(r.Context(), sessionFrom(r), req.lineItems())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// IncrementCheckoutItem handles POST /api/v1/checkout/items/{productID}/increment
func (h *SessionHandler) IncrementCheckoutItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.IncrementCheckoutItem)
}

// DecrementCheckoutItem handles POST /api/v1/checkout/items/{productID}/decrement
func (h *SessionHandler) DecrementCheckoutItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.DecrementCheckoutItem)
}

// RemoveCheckoutItem handles DELETE /api/v1/checkout/items/{productID}
func (h *SessionHandler) RemoveCheckoutItem(w http.ResponseWriter, r *http.Request) {
	itemAction(h, w, r, h.service.RemoveCheckoutItem)
}

// PlaceOrder handles POST /api/v1/checkout/orders
func (h *SessionHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.PlaceOrder(r.Context(), sessionFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, order)
}

// AbandonCheckout handles DELETE /api/v1/checkout
func (h *SessionHandler) AbandonCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.AbandonCheckout(r.Context(), sessionFrom(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Currencies ---

// ListCurrencies handles GET /api/v1/currencies
func (h *SessionHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, map[string]any{
		"base":       h.service.BaseCurrency(),
		"currencies": h.service.Currencies(r.Context()),
	})
}
