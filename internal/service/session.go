// Package service runs the storefront session operations on top of the
// per-session ledgers and checkout aggregate.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/checkout"
	"github.com/utafrali/storefront/internal/currency"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/wishlist"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Session identifies the caller of an operation.
type Session struct {
	ID     string
	UserID string
}

// RateSource provides exchange rates relative to the base currency.
type RateSource interface {
	FetchRates(ctx context.Context) (domain.RateTable, error)
}

// OrderSubmitter places the order of a checkout.
type OrderSubmitter interface {
	Submit(ctx context.Context, checkout order.Checkout, user string) (*domain.Order, error)
}

// AbandonPublisher announces checkouts cleared without an order.
type AbandonPublisher interface {
	PublishCheckoutAbandoned(ctx context.Context, sessionID, userID string, snap domain.CheckoutSnapshot) error
}

// Dependencies are the collaborators of a SessionService. Addresses, Rates
// and Events may be nil.
type Dependencies struct {
	Stores       storage.Factory
	Addresses    checkout.AddressSource
	Orders       OrderSubmitter
	Rates        RateSource
	Events       AbandonPublisher
	BaseCurrency string
}

// SessionService implements the cart, wishlist and checkout operations of a
// session. State is loaded from the session store on every call.
type SessionService struct {
	deps      Dependencies
	converter currency.Converter
	locks     *sessionLocker
	logger    *slog.Logger
}

// NewSessionService creates a session service.
func NewSessionService(deps Dependencies, logger *slog.Logger) *SessionService {
	return &SessionService{
		deps:      deps,
		converter: currency.NewConverter(deps.BaseCurrency),
		locks:     newSessionLocker(),
		logger:    logger,
	}
}

// BaseCurrency is the currency stored and submitted prices are in.
func (s *SessionService) BaseCurrency() string {
	return s.converter.Base
}

func (s *SessionService) lock(sess Session) (storage.Store, func(), error) {
	if sess.ID == "" {
		return nil, nil, apperrors.InvalidInput("session id is required")
	}
	unlock := s.locks.Lock(sess.ID)
	return s.deps.Stores.ForSession(sess.ID), unlock, nil
}

// Pricing resolves the display currency code. An empty code or the base
// currency needs no rates. When rates cannot be fetched prices are shown in
// the base currency.
func (s *SessionService) Pricing(ctx context.Context, code string) (Pricing, error) {
	base := Pricing{Currency: s.converter.Base, converter: s.converter}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == s.converter.Base {
		return base, nil
	}
	if _, ok := currency.Lookup(code); !ok {
		return Pricing{}, apperrors.InvalidInput("unsupported currency " + code)
	}
	if s.deps.Rates == nil {
		return base, nil
	}

	rates, err := s.deps.Rates.FetchRates(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "exchange rates unavailable, showing base currency",
			slog.String("currency", code),
			slog.String("error", err.Error()),
		)
		return base, nil
	}
	return Pricing{Currency: code, Rates: rates, converter: s.converter}, nil
}

// Currencies lists the display currencies with their current rates. Rates
// stay zero when the exchange-rate endpoint is unavailable.
func (s *SessionService) Currencies(ctx context.Context) []domain.CurrencyRate {
	list := currency.Currencies()
	var rates domain.RateTable
	if s.deps.Rates != nil {
		var err error
		if rates, err = s.deps.Rates.FetchRates(ctx); err != nil {
			s.logger.WarnContext(ctx, "exchange rates unavailable", slog.String("error", err.Error()))
		}
	}
	for i := range list {
		if list[i].Code == s.converter.Base {
			list[i].Rate = decimal.NewFromInt(1)
			continue
		}
		if rate, ok := rates[list[i].Code]; ok {
			list[i].Rate = rate
		}
	}
	return list
}

// --- Cart ---

func (s *SessionService) withCart(ctx context.Context, sess Session, fn func(l *cart.Ledger) error) ([]domain.LineItem, error) {
	store, unlock, err := s.lock(sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ledger, err := cart.Open(ctx, store, s.logger)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return ledger.Items(), nil
	}

	hadItems := ledger.Count() > 0
	if err := fn(ledger); err != nil {
		return nil, err
	}
	if hadItems && ledger.Count() == 0 {
		// An emptied cart is an emptied checkout.
		if err := storage.DeleteKeys(ctx, store, storage.KeyPaymentMethod, storage.KeyShippingAddress); err != nil {
			return nil, fmt.Errorf("reset checkout: %w", err)
		}
		s.logger.InfoContext(ctx, "cart emptied, checkout reset")
	}
	return ledger.Items(), nil
}

// Cart returns the cart priced in currencyCode.
func (s *SessionService) Cart(ctx context.Context, sess Session, currencyCode string) (*CartView, error) {
	pricing, err := s.Pricing(ctx, currencyCode)
	if err != nil {
		return nil, err
	}
	items, err := s.withCart(ctx, sess, nil)
	if err != nil {
		return nil, err
	}
	return newCartView(items, pricing), nil
}

// AddToCart adds product with quantity, replacing any existing line.
func (s *SessionService) AddToCart(ctx context.Context, sess Session, product domain.ProductSnapshot, quantity int) (*CartView, error) {
	return s.mutateCart(ctx, sess, func(l *cart.Ledger) error {
		return l.AddOrUpdate(ctx, domain.NewLineItem(product, quantity), quantity)
	})
}

// IncrementCartItem adds one unit of productID.
func (s *SessionService) IncrementCartItem(ctx context.Context, sess Session, productID string) (*CartView, error) {
	return s.mutateCart(ctx, sess, func(l *cart.Ledger) error {
		return l.IncrementQuantity(ctx, productID)
	})
}

// DecrementCartItem removes one unit of productID.
func (s *SessionService) DecrementCartItem(ctx context.Context, sess Session, productID string) (*CartView, error) {
	return s.mutateCart(ctx, sess, func(l *cart.Ledger) error {
		return l.DecrementQuantity(ctx, productID)
	})
}

// RemoveCartItem drops the line of productID.
func (s *SessionService) RemoveCartItem(ctx context.Context, sess Session, productID string) (*CartView, error) {
	return s.mutateCart(ctx, sess, func(l *cart.Ledger) error {
		return l.Remove(ctx, productID)
	})
}

func (s *SessionService) mutateCart(ctx context.Context, sess Session, fn func(l *cart.Ledger) error) (*CartView, error) {
	items, err := s.withCart(ctx, sess, fn)
	if err != nil {
		return nil, err
	}
	return newCartView(items, s.basePricing()), nil
}

// --- Wishlist ---

func (s *SessionService) withWishlist(ctx context.Context, sess Session, fn func(w *wishlist.Ledger, c *cart.Ledger) error) ([]domain.WishlistItem, *cart.Ledger, error) {
	store, unlock, err := s.lock(sess)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	wl, err := wishlist.Open(ctx, store, s.logger)
	if err != nil {
		return nil, nil, err
	}
	cl, err := cart.Open(ctx, store, s.logger)
	if err != nil {
		return nil, nil, err
	}
	if fn != nil {
		if err := fn(wl, cl); err != nil {
			return nil, nil, err
		}
	}
	return wl.Items(), cl, nil
}

// Wishlist returns the wishlist priced in currencyCode.
func (s *SessionService) Wishlist(ctx context.Context, sess Session, currencyCode string) (*WishlistView, error) {
	pricing, err := s.Pricing(ctx, currencyCode)
	if err != nil {
		return nil, err
	}
	items, cl, err := s.withWishlist(ctx, sess, nil)
	if err != nil {
		return nil, err
	}
	return newWishlistView(items, cl.Contains, pricing), nil
}

// AddToWishlist adds product to the wishlist.
func (s *SessionService) AddToWishlist(ctx context.Context, sess Session, product domain.ProductSnapshot) (*WishlistView, error) {
	items, cl, err := s.withWishlist(ctx, sess, func(w *wishlist.Ledger, _ *cart.Ledger) error {
		return w.Add(ctx, domain.NewWishlistItem(product))
	})
	if err != nil {
		return nil, err
	}
	return newWishlistView(items, cl.Contains, s.basePricing()), nil
}

// RemoveFromWishlist drops productID from the wishlist.
func (s *SessionService) RemoveFromWishlist(ctx context.Context, sess Session, productID string) (*WishlistView, error) {
	items, cl, err := s.withWishlist(ctx, sess, func(w *wishlist.Ledger, _ *cart.Ledger) error {
		return w.Remove(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return newWishlistView(items, cl.Contains, s.basePricing()), nil
}

// MoveToCart moves productID from the wishlist into the cart with quantity 1.
func (s *SessionService) MoveToCart(ctx context.Context, sess Session, productID string) (*MoveResult, error) {
	items, cl, err := s.withWishlist(ctx, sess, func(w *wishlist.Ledger, c *cart.Ledger) error {
		return w.MoveToCart(ctx, productID, c)
	})
	if err != nil {
		return nil, err
	}
	p := s.basePricing()
	return &MoveResult{
		Cart:     newCartView(cl.Items(), p),
		Wishlist: newWishlistView(items, cl.Contains, p),
	}, nil
}

// --- Checkout ---

// withCheckout opens and hydrates the checkout of sess. The aggregate is
// released when fn returns or ctx ends, whichever comes first.
func (s *SessionService) withCheckout(ctx context.Context, sess Session, fn func(a *checkout.Aggregate) error) (*checkout.Aggregate, error) {
	store, unlock, err := s.lock(sess)
	if err != nil {
		return nil, err
	}
	defer unlock()

	agg := checkout.New(store, cart.NewLedger(store, s.logger), s.deps.Addresses, sess.UserID, s.logger)
	stop := context.AfterFunc(ctx, agg.Release)
	defer func() {
		stop()
		agg.Release()
	}()

	if err := agg.Hydrate(ctx); err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(agg); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// Checkout hydrates the checkout and returns it priced in currencyCode.
func (s *SessionService) Checkout(ctx context.Context, sess Session, currencyCode string) (*CheckoutView, error) {
	pricing, err := s.Pricing(ctx, currencyCode)
	if err != nil {
		return nil, err
	}
	agg, err := s.withCheckout(ctx, sess, nil)
	if err != nil {
		return nil, err
	}
	return newCheckoutView(agg.Status(), agg.Snapshot(), pricing), nil
}

// SetShippingAddress selects the shipping address of the checkout.
func (s *SessionService) SetShippingAddress(ctx context.Context, sess Session, addr domain.ShippingAddress) (*CheckoutView, error) {
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		return a.SetShippingAddress(ctx, addr)
	})
}

// SetPaymentMethod selects the payment method of the checkout.
func (s *SessionService) SetPaymentMethod(ctx context.Context, sess Session, method string) (*CheckoutView, error) {
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		return a.SetPaymentMethod(ctx, method)
	})
}

// IncrementCheckoutItem adds one unit of productID to the order.
func (s *SessionService) IncrementCheckoutItem(ctx context.Context, sess Session, productID string) (*CheckoutView, error) {
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		_, err := a.IncrementItem(ctx, productID)
		return err
	})
}

// DecrementCheckoutItem removes one unit of productID from the order.
func (s *SessionService) DecrementCheckoutItem(ctx context.Context, sess Session, productID string) (*CheckoutView, error) {
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		_, err := a.DecrementItem(ctx, productID)
		return err
	})
}

// RemoveCheckoutItem drops productID from the order. Removing the last item
// resets the checkout.
func (s *SessionService) RemoveCheckoutItem(ctx context.Context, sess Session, productID string) (*CheckoutView, error) {
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		_, err := a.RemoveItem(ctx, productID)
		return err
	})
}

// ReplaceCheckoutItems replaces the order items, and with them the cart. An
// empty list resets the checkout.
func (s *SessionService) ReplaceCheckoutItems(ctx context.Context, sess Session, items []domain.LineItem) (*CheckoutView, error) {
	for _, item := range items {
		if item.Quantity > item.StockAtAddTime {
			return nil, apperrors.StockLimit(item.ProductID, item.StockAtAddTime)
		}
	}
	return s.mutateCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		_, err := a.SetOrderItems(ctx, items)
		return err
	})
}

func (s *SessionService) mutateCheckout(ctx context.Context, sess Session, fn func(a *checkout.Aggregate) error) (*CheckoutView, error) {
	agg, err := s.withCheckout(ctx, sess, fn)
	if err != nil {
		return nil, err
	}
	return newCheckoutView(agg.Status(), agg.Snapshot(), s.basePricing()), nil
}

// PlaceOrder submits the checkout to the order service. The submitting user
// is the signed-in user id, or the session id for anonymous sessions.
func (s *SessionService) PlaceOrder(ctx context.Context, sess Session) (*domain.Order, error) {
	if s.deps.Orders == nil {
		return nil, apperrors.ServiceUnavailable("order submission is not configured")
	}
	user := sess.UserID
	if user == "" {
		user = sess.ID
	}

	var placed *domain.Order
	_, err := s.withCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		var err error
		placed, err = s.deps.Orders.Submit(ctx, a, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// AbandonCheckout clears the checkout and the cart without placing an order.
// A checkout.abandoned event is published when there was something to lose.
func (s *SessionService) AbandonCheckout(ctx context.Context, sess Session) error {
	var snap domain.CheckoutSnapshot
	_, err := s.withCheckout(ctx, sess, func(a *checkout.Aggregate) error {
		snap = a.Snapshot()
		return a.Reset(ctx)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "checkout abandoned", slog.Int("items", len(snap.OrderItems)))

	if len(snap.OrderItems) > 0 && s.deps.Events != nil {
		if err := s.deps.Events.PublishCheckoutAbandoned(ctx, sess.ID, sess.UserID, snap); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish checkout abandoned event", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *SessionService) basePricing() Pricing {
	return Pricing{Currency: s.converter.Base, converter: s.converter}
}
