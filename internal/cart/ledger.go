// Package cart holds the session cart: one line item per product, with the
// quantity bounded by the stock known when the product was added.
package cart

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// MaxItemsPerCart is the maximum number of distinct products a cart may hold.
const MaxItemsPerCart = 50

// Ledger is the cart of one session. Every mutation is written through to the
// session store before it becomes visible in memory.
type Ledger struct {
	mu     sync.Mutex
	store  storage.Store
	logger *slog.Logger
	items  []domain.LineItem
}

// NewLedger creates an empty ledger backed by store. Call Load to hydrate it.
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

// Load replaces the in-memory items with the stored cart. An absent key is an
// empty cart.
func (l *Ledger) Load(ctx context.Context) error {
	var items []domain.LineItem
	if _, err := storage.GetJSON(ctx, l.store, storage.KeyCartItems, &items); err != nil {
		return fmt.Errorf("load cart: %w", err)
	}

	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
	return nil
}

// AddOrUpdate puts product in the cart with the given quantity. An existing
// line for the same product is replaced wholesale, so the newer snapshot wins.
func (l *Ledger) AddOrUpdate(ctx context.Context, item domain.LineItem, quantity int) error {
	if item.ProductID == "" {
		return apperrors.InvalidInput("product id is required")
	}
	if quantity < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if quantity > item.StockAtAddTime {
		return apperrors.StockLimit(item.ProductID, item.StockAtAddTime)
	}
	if item.UnitPrice.IsNegative() {
		return apperrors.InvalidInput("price must not be negative")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item.Quantity = quantity
	next := domain.CloneItems(l.items)
	if i := indexOf(next, item.ProductID); i >= 0 {
		next[i] = item
	} else {
		if len(next) >= MaxItemsPerCart {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", MaxItemsPerCart))
		}
		next = append(next, item)
	}

	if err := l.commitLocked(ctx, next); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "cart item set",
		slog.String("product_id", item.ProductID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// Remove drops the product from the cart. Removing an absent product is a
// no-op; removing the last product deletes the stored cart.
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

	next := make([]domain.LineItem, 0, len(l.items)-1)
	next = append(next, l.items[:i]...)
	next = append(next, l.items[i+1:]...)

	if err := l.commitLocked(ctx, next); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "cart item removed", slog.String("product_id", productID))
	return nil
}

// IncrementQuantity adds one unit of the product, bounded by its stock.
func (l *Ledger) IncrementQuantity(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.items, productID)
	if i < 0 {
		return apperrors.NotFound("cart item", productID)
	}
	current := l.items[i]
	if current.Quantity+1 > current.StockAtAddTime {
		return apperrors.StockLimit(productID, current.StockAtAddTime)
	}

	next := domain.CloneItems(l.items)
	next[i].Quantity++
	return l.commitLocked(ctx, next)
}

// DecrementQuantity removes one unit of the product. Reaching zero removes the
// line exactly as Remove does. An absent product is a no-op.
func (l *Ledger) DecrementQuantity(ctx context.Context, productID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.items, productID)
	if i < 0 {
		return nil
	}
	if l.items[i].Quantity <= 1 {
		return l.removeLocked(ctx, productID)
	}

	next := domain.CloneItems(l.items)
	next[i].Quantity--
	return l.commitLocked(ctx, next)
}

// Replace swaps the whole cart for items. Lines with a quantity below one are
// rejected and nothing changes.
func (l *Ledger) Replace(ctx context.Context, items []domain.LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return apperrors.InvalidInput("product id is required")
		}
		if item.Quantity < 1 {
			return apperrors.InvalidInput(fmt.Sprintf("quantity of %s must be at least 1", item.ProductID))
		}
		if _, dup := seen[item.ProductID]; dup {
			return apperrors.InvalidInput(fmt.Sprintf("product %s listed more than once", item.ProductID))
		}
		seen[item.ProductID] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.commitLocked(ctx, domain.CloneItems(items))
}

// Clear empties the cart and deletes the stored key.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.commitLocked(ctx, nil)
}

// Items returns a copy of the cart lines in insertion order.
func (l *Ledger) Items() []domain.LineItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	return domain.CloneItems(l.items)
}

// Get returns the line for productID.
func (l *Ledger) Get(productID string) (domain.LineItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := indexOf(l.items, productID); i >= 0 {
		return l.items[i], true
	}
	return domain.LineItem{}, false
}

// Contains reports whether the product is in the cart.
func (l *Ledger) Contains(productID string) bool {
	_, ok := l.Get(productID)
	return ok
}

// Count returns the number of units across all lines.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, item := range l.items {
		n += item.Quantity
	}
	return n
}

// Total returns the sum of unit price times quantity, computed on every call.
func (l *Ledger) Total() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return domain.TotalOf(l.items)
}

// commitLocked writes next to the store and only then adopts it in memory. An
// empty cart is stored as an absent key.
func (l *Ledger) commitLocked(ctx context.Context, next []domain.LineItem) error {
	var err error
	if len(next) == 0 {
		err = l.store.Delete(ctx, storage.KeyCartItems)
		next = nil
	} else {
		err = storage.SetJSON(ctx, l.store, storage.KeyCartItems, next)
	}
	if err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	l.items = next
	return nil
}

func indexOf(items []domain.LineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
