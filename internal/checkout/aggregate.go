// Package checkout holds the in-progress order of a session: shipping
// address, payment method and the order items copied from the cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/validator"
)

// ErrReleased is returned when a completion arrives after Release.
var ErrReleased = errors.New("checkout released")

var errNoItems = apperrors.Conflict("checkout has no items")

// AddressSource provides the saved addresses of a user.
type AddressSource interface {
	SavedAddresses(ctx context.Context, userID string) ([]domain.SavedAddress, error)
}

// Aggregate is the checkout of one session. Fields are written through to
// the session store; order items always mirror the cart ledger.
type Aggregate struct {
	mu        sync.Mutex
	store     storage.Store
	cart      *cart.Ledger
	addresses AddressSource
	logger    *slog.Logger
	userID    string

	shipping *domain.ShippingAddress
	payment  string
	items    []domain.LineItem

	submitting bool
	completed  bool
	failure    error

	releaseOnce sync.Once
	released    chan struct{}
}

// New creates an aggregate for the session behind store. addresses may be nil
// and userID empty for anonymous sessions.
func New(store storage.Store, ledger *cart.Ledger, addresses AddressSource, userID string, logger *slog.Logger) *Aggregate {
	return &Aggregate{
		store:     store,
		cart:      ledger,
		addresses: addresses,
		logger:    logger,
		userID:    userID,
		released:  make(chan struct{}),
	}
}

// Hydrate reads the checkout from the store and copies the cart into the
// order items. An empty cart means an empty checkout: leftover address and
// payment keys are deleted. Otherwise, when no address is selected yet, the
// user's home address, or else their first saved address, is selected and
// persisted.
func (a *Aggregate) Hydrate(ctx context.Context) error {
	if err := a.cart.Load(ctx); err != nil {
		return err
	}
	if a.cart.Count() == 0 {
		return a.hydrateEmpty(ctx)
	}

	var shipping domain.ShippingAddress
	hasShipping, err := storage.GetJSON(ctx, a.store, storage.KeyShippingAddress, &shipping)
	if err != nil {
		return fmt.Errorf("load shipping address: %w", err)
	}
	var payment string
	if _, err := storage.GetJSON(ctx, a.store, storage.KeyPaymentMethod, &payment); err != nil {
		return fmt.Errorf("load payment method: %w", err)
	}

	var saved []domain.SavedAddress
	if !hasShipping && a.addresses != nil && a.userID != "" {
		saved, err = a.addresses.SavedAddresses(ctx, a.userID)
		if err != nil {
			// The checkout stays usable; the user picks an address by hand.
			a.logger.WarnContext(ctx, "failed to load saved addresses",
				slog.String("user_id", a.userID),
				slog.String("error", err.Error()),
			)
			saved = nil
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReleasedLocked(); err != nil {
		return err
	}

	a.items = a.cart.Items()
	a.payment = payment
	a.shipping = nil
	if hasShipping {
		a.shipping = &shipping
	} else if def, ok := domain.DefaultAddress(saved); ok {
		if err := storage.SetJSON(ctx, a.store, storage.KeyShippingAddress, def); err != nil {
			return fmt.Errorf("persist default address: %w", err)
		}
		a.shipping = &def
		a.logger.InfoContext(ctx, "default shipping address selected",
			slog.String("address_type", def.AddressType),
		)
	}
	a.failure = nil
	a.completed = false
	return nil
}

func (a *Aggregate) hydrateEmpty(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReleasedLocked(); err != nil {
		return err
	}
	if err := storage.DeleteKeys(ctx, a.store, storage.KeyPaymentMethod, storage.KeyShippingAddress); err != nil {
		return fmt.Errorf("clear empty checkout: %w", err)
	}
	a.items = nil
	a.payment = ""
	a.shipping = nil
	a.failure = nil
	a.completed = false
	return nil
}

// SetShippingAddress validates and stores a copy of addr. An empty checkout
// takes no address.
func (a *Aggregate) SetShippingAddress(ctx context.Context, addr domain.ShippingAddress) error {
	if err := validator.Validate(addr); err != nil {
		return apperrors.Validation(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.guardLocked(); err != nil {
		return err
	}
	if len(a.items) == 0 {
		return errNoItems
	}
	if err := storage.SetJSON(ctx, a.store, storage.KeyShippingAddress, addr); err != nil {
		return err
	}
	a.shipping = &addr
	a.touchLocked()

	a.logger.InfoContext(ctx, "shipping address set", slog.String("country", addr.Country))
	return nil
}

// SetPaymentMethod stores the chosen payment method. An empty checkout takes
// no payment method.
func (a *Aggregate) SetPaymentMethod(ctx context.Context, method string) error {
	if method == "" {
		return apperrors.InvalidInput("payment method is required")
	}
	if !domain.IsValidPaymentMethod(method) {
		return apperrors.InvalidInput(fmt.Sprintf("unsupported payment method %q", method))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.guardLocked(); err != nil {
		return err
	}
	if len(a.items) == 0 {
		return errNoItems
	}
	if err := storage.SetJSON(ctx, a.store, storage.KeyPaymentMethod, method); err != nil {
		return err
	}
	a.payment = method
	a.touchLocked()

	a.logger.InfoContext(ctx, "payment method set", slog.String("payment_method", method))
	return nil
}

// SetOrderItems replaces the order items, and with them the cart. An empty
// list resets the checkout.
func (a *Aggregate) SetOrderItems(ctx context.Context, items []domain.LineItem) (domain.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.guardLocked(); err != nil {
		return a.statusLocked(), err
	}
	if err := a.cart.Replace(ctx, items); err != nil {
		return a.statusLocked(), err
	}
	return a.syncLocked(ctx)
}

// IncrementItem adds one unit of the product through the cart ledger.
func (a *Aggregate) IncrementItem(ctx context.Context, productID string) (domain.Status, error) {
	return a.mutateItems(ctx, func() error {
		return a.cart.IncrementQuantity(ctx, productID)
	})
}

// DecrementItem removes one unit of the product through the cart ledger.
func (a *Aggregate) DecrementItem(ctx context.Context, productID string) (domain.Status, error) {
	return a.mutateItems(ctx, func() error {
		return a.cart.DecrementQuantity(ctx, productID)
	})
}

// RemoveItem drops the product through the cart ledger.
func (a *Aggregate) RemoveItem(ctx context.Context, productID string) (domain.Status, error) {
	return a.mutateItems(ctx, func() error {
		return a.cart.Remove(ctx, productID)
	})
}

// mutateItems applies fn to the cart and copies the result back. When the
// order ends up empty the checkout is reset and StatusEmpty is returned, which
// callers treat as the signal to leave checkout.
func (a *Aggregate) mutateItems(ctx context.Context, fn func() error) (domain.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.guardLocked(); err != nil {
		return a.statusLocked(), err
	}
	if err := fn(); err != nil {
		return a.statusLocked(), err
	}
	return a.syncLocked(ctx)
}

func (a *Aggregate) syncLocked(ctx context.Context) (domain.Status, error) {
	a.items = a.cart.Items()
	if len(a.items) == 0 {
		if err := a.resetLocked(ctx); err != nil {
			return a.statusLocked(), err
		}
		a.logger.InfoContext(ctx, "checkout emptied, state reset")
		return domain.StatusEmpty, nil
	}
	a.touchLocked()
	return a.statusLocked(), nil
}

// Reset clears the checkout and the cart, in memory and in the store.
func (a *Aggregate) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.guardLocked(); err != nil {
		return err
	}
	return a.resetLocked(ctx)
}

// resetLocked clears the cart first, then each checkout key. Memory follows
// every successful delete, so a failure leaves it matching the store.
func (a *Aggregate) resetLocked(ctx context.Context) error {
	if err := a.cart.Clear(ctx); err != nil {
		return fmt.Errorf("reset checkout: %w", err)
	}
	a.items = nil
	if err := a.store.Delete(ctx, storage.KeyPaymentMethod); err != nil {
		return fmt.Errorf("reset checkout: delete %s: %w", storage.KeyPaymentMethod, err)
	}
	a.payment = ""
	if err := a.store.Delete(ctx, storage.KeyShippingAddress); err != nil {
		return fmt.Errorf("reset checkout: delete %s: %w", storage.KeyShippingAddress, err)
	}
	a.shipping = nil
	a.failure = nil
	return nil
}

// Status returns the current state of the checkout.
func (a *Aggregate) Status() domain.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.statusLocked()
}

func (a *Aggregate) statusLocked() domain.Status {
	switch {
	case a.submitting:
		return domain.StatusSubmitting
	case a.completed:
		return domain.StatusCompleted
	}
	status := a.snapshotLocked().Status()
	if a.failure != nil && status == domain.StatusReadyToSubmit {
		return domain.StatusFailed
	}
	return status
}

// LastError returns the failure of the last submission, if it failed.
func (a *Aggregate) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.failure
}

// Snapshot returns a detached copy of the checkout fields.
func (a *Aggregate) Snapshot() domain.CheckoutSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.snapshotLocked()
}

func (a *Aggregate) snapshotLocked() domain.CheckoutSnapshot {
	snap := domain.CheckoutSnapshot{
		PaymentMethod: a.payment,
		OrderItems:    domain.CloneItems(a.items),
	}
	if a.shipping != nil {
		addr := *a.shipping
		snap.ShippingAddress = &addr
	}
	return snap
}

// Total returns the order total computed from the current items.
func (a *Aggregate) Total() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()

	return domain.TotalOf(a.items)
}

// BeginSubmit moves a ready (or failed) checkout to Submitting and returns the
// snapshot to submit, read under the same lock as every mutation.
func (a *Aggregate) BeginSubmit(ctx context.Context) (domain.CheckoutSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkReleasedLocked(); err != nil {
		return domain.CheckoutSnapshot{}, err
	}
	if a.submitting {
		return domain.CheckoutSnapshot{}, apperrors.Conflict("an order is already being placed")
	}
	if status := a.statusLocked(); !status.CanSubmit() {
		return domain.CheckoutSnapshot{}, apperrors.Conflict(fmt.Sprintf("checkout is not ready to submit (%s)", status))
	}

	a.submitting = true
	a.logger.InfoContext(ctx, "order submission started")
	return a.snapshotLocked(), nil
}

// CompleteSubmit finishes a submission that the order endpoint accepted:
// checkout and cart are reset and the state becomes Completed. The order
// exists downstream, so the stored checkout is cleared even after Release.
func (a *Aggregate) CompleteSubmit(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.submitting {
		return apperrors.Conflict("no order submission in progress")
	}
	a.submitting = false
	if err := a.resetLocked(ctx); err != nil {
		return err
	}
	a.completed = true
	return nil
}

// FailSubmit records a failed submission. The checkout keeps its data and
// reports Failed until the next submission or mutation.
func (a *Aggregate) FailSubmit(cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.submitting {
		return
	}
	a.submitting = false
	if a.checkReleasedLocked() != nil {
		return
	}
	a.failure = cause
}

// AbandonSubmit clears the in-flight flag without touching checkout data.
func (a *Aggregate) AbandonSubmit() {
	a.mu.Lock()
	a.submitting = false
	a.mu.Unlock()
}

// Release marks the aggregate as discarded. Completions that arrive later are
// ignored. Safe to call more than once.
func (a *Aggregate) Release() {
	a.releaseOnce.Do(func() { close(a.released) })
}

// Released reports whether Release was called.
func (a *Aggregate) Released() bool {
	select {
	case <-a.released:
		return true
	default:
		return false
	}
}

// Done is closed by Release.
func (a *Aggregate) Done() <-chan struct{} {
	return a.released
}

func (a *Aggregate) checkReleasedLocked() error {
	if a.Released() {
		return ErrReleased
	}
	return nil
}

func (a *Aggregate) guardLocked() error {
	if err := a.checkReleasedLocked(); err != nil {
		return err
	}
	if a.submitting {
		return apperrors.Conflict("checkout cannot change while an order is being placed")
	}
	return nil
}

// touchLocked clears outcome flags after a successful mutation.
func (a *Aggregate) touchLocked() {
	a.failure = nil
	a.completed = false
}
