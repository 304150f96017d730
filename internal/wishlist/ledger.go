// Package wishlist holds the session wishlist and moves entries into the cart.
package wishlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Cart is the part of the cart ledger a move-to-cart needs.
type Cart interface {
	Contains(productID string) bool
	AddOrUpdate(ctx context.Context, item domain.LineItem, quantity int) error
}

// Ledger is the wishlist of one session. As with the cart, an empty wishlist
// is stored as an absent key.
type Ledger struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
	items  []domain.WishlistItem
}

// NewLedger creates an empty ledger backed by store.
func NewLedger(store storage.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
	}
}

// Open creates a ledger and hydrates it from store.
func Open(ctx context.Context, store storage.Store, logger *slog.Logger) (*Ledger, error) {
	l := NewLedger(store, logger)
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Load replaces the in-memory entries with the stored wishlist.
func (l *Ledger) Load(ctx context.Context) error {
	var items []domain.WishlistItem
	if _, err := storage.GetJSON(ctx, l.store, storage.KeyWishlistItems, &items); err != nil {
		return fmt.Errorf("load wishlist: %w", err)
	}

	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	return nil
}

// Add appends item. A product already on the wishlist is rejected.
func (l *Ledger) Add(ctx context.Context, item domain.WishlistItem) error {
	if item.ProductID == "" {
		return apperrors.InvalidInput("product id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if indexOf(l.items, item.ProductID) >= 0 {
		return apperrors.AlreadyExists("wishlist item", "product_id", item.ProductID)
	}

	next := make([]domain.WishlistItem, 0, len(l.items)+1)
	next = append(next, l.items...)
	next = append(next, item)
	if err := l.commitLocked(ctx, next); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "wishlist item added", slog.String("product_id", item.ProductID))
	return nil
}

// Remove drops the product from the wishlist. An absent product is a no-op.
func (l *Ledger) Remove(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.removeLocked(ctx, productID)
}

func (l *Ledger) removeLocked(ctx context.Context, productID string) error {
	i := indexOf(l.items, productID)
	if i < 0 {
		return nil
	}

	next := make([]domain.WishlistItem, 0, len(l.items)-1)
	next = append(next, l.items[:i]...)
	next = append(next, l.items[i+1:]...)
	if err := l.commitLocked(ctx, next); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "wishlist item removed", slog.String("product_id", productID))
	return nil
}

// MoveToCart adds one unit of the wishlist entry to cart and, only once the
// cart accepted it, removes the entry. A product already in the cart is
// rejected and both ledgers stay as they were.
func (l *Ledger) MoveToCart(ctx context.Context, productID string, cart Cart) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.items, productID)
	if i < 0 {
		return apperrors.NotFound("wishlist item", productID)
	}
	if cart.Contains(productID) {
		return apperrors.AlreadyExists("cart item", "product_id", productID)
	}

	entry := l.items[i]
	if err := cart.AddOrUpdate(ctx, entry.LineItem(1), 1); err != nil {
		return fmt.Errorf("move %s to cart: %w", productID, err)
	}
	if err := l.removeLocked(ctx, productID); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "wishlist item moved to cart", slog.String("product_id", productID))
	return nil
}

// Items returns a copy of the wishlist entries in insertion order.
func (l *Ledger) Items() []domain.WishlistItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.items == nil {
		return nil
	}
	out := make([]domain.WishlistItem, len(l.items))
	copy(out, l.items)
	return out
}

// Contains reports whether the product is on the wishlist.
func (l *Ledger) Contains(productID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return indexOf(l.items, productID) >= 0
}

func (l *Ledger) commitLocked(ctx context.Context, next []domain.WishlistItem) error {
	var err error
	if len(next) == 0 {
		err = l.store.Delete(ctx, storage.KeyWishlistItems)
		next = nil
	} else {
		err = storage.SetJSON(ctx, l.store, storage.KeyWishlistItems, next)
	}
	if err != nil {
		return fmt.Errorf("persist wishlist: %w", err)
	}

	l.items = next
	return nil
}

func indexOf(items []domain.WishlistItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
