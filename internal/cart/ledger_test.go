package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/internal/storage/memory"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewLedger(store, newTestLogger()), store
}

func lineItem(id, price string, stock int) domain.LineItem {
	return domain.LineItem{
		ProductID:      id,
		Name:           "Product " + id,
		VendorID:       "vendor-1",
		UnitPrice:      decimal.RequireFromString(price),
		StockAtAddTime: stock,
	}
}

func storedItems(t *testing.T, store storage.Store) ([]domain.LineItem, bool) {
	t.Helper()
	var items []domain.LineItem
	found, err := storage.GetJSON(context.Background(), store, storage.KeyCartItems, &items)
	require.NoError(t, err)
	return items, found
}

// switchStore fails writes while broken is set.
type switchStore struct {
	*memory.Store
	broken bool
}

var errStoreDown = errors.New("store down")

func (s *switchStore) Set(ctx context.Context, key string, value []byte) error {
	if s.broken {
		return errStoreDown
	}
	return s.Store.Set(ctx, key, value)
}

func (s *switchStore) Delete(ctx context.Context, key string) error {
	if s.broken {
		return errStoreDown
	}
	return s.Store.Delete(ctx, key)
}

// --- AddOrUpdate ---

func TestAddOrUpdate_NewItem(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 2))

	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)

	persisted, found := storedItems(t, store)
	require.True(t, found)
	assert.Equal(t, items[0].ProductID, persisted[0].ProductID)
	assert.Equal(t, 2, persisted[0].Quantity)
}

func TestAddOrUpdate_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	first := lineItem("p1", "10", 5)
	second := lineItem("p1", "8.75", 9)
	second.Name = "Renamed"

	require.NoError(t, l.AddOrUpdate(ctx, first, 1))
	require.NoError(t, l.AddOrUpdate(ctx, second, 3))

	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Renamed", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 9, items[0].StockAtAddTime)
	assert.True(t, decimal.RequireFromString("8.75").Equal(items[0].UnitPrice))

	persisted, _ := storedItems(t, store)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Renamed", persisted[0].Name)
}

func TestAddOrUpdate_KeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("a", "1", 5), 1))
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("b", "1", 5), 1))
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("a", "2", 5), 2))

	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, "b", items[1].ProductID)
}

func TestAddOrUpdate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		item     domain.LineItem
		quantity int
		target   error
	}{
		{name: "zero quantity", item: lineItem("p1", "10", 5), quantity: 0, target: apperrors.ErrInvalidInput},
		{name: "negative quantity", item: lineItem("p1", "10", 5), quantity: -1, target: apperrors.ErrInvalidInput},
		{name: "above stock", item: lineItem("p1", "10", 2), quantity: 3, target: apperrors.ErrStockLimit},
		{name: "missing product id", item: lineItem("", "10", 2), quantity: 1, target: apperrors.ErrInvalidInput},
		{name: "negative price", item: lineItem("p1", "-1", 2), quantity: 1, target: apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, store := newTestLedger(t)

			err := l.AddOrUpdate(context.Background(), tt.item, tt.quantity)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.True(t, apperrors.IsRejection(err))
			assert.Empty(t, l.Items())
			assert.False(t, store.Has(storage.KeyCartItems))
		})
	}
}

func TestAddOrUpdate_MaxDistinctItems(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	for i := 0; i < MaxItemsPerCart; i++ {
		require.NoError(t, l.AddOrUpdate(ctx, lineItem(string(rune('A'+i)), "1", 5), 1))
	}

	err := l.AddOrUpdate(ctx, lineItem("overflow", "1", 5), 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Len(t, l.Items(), MaxItemsPerCart)
}

// --- Remove / Decrement ---

func TestRemove_LastItemDeletesKey(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 1))
	require.NoError(t, l.Remove(ctx, "p1"))

	assert.Empty(t, l.Items())
	assert.False(t, store.Has(storage.KeyCartItems))
}

func TestRemove_Absent_NoOp(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 1))
	require.NoError(t, l.Remove(ctx, "missing"))

	assert.Len(t, l.Items(), 1)
	assert.True(t, store.Has(storage.KeyCartItems))
}

func TestDecrementToZero_EquivalentToRemove(t *testing.T) {
	ctx := context.Background()

	build := func() (*Ledger, *memory.Store) {
		l, store := newTestLedger(t)
		require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 1))
		require.NoError(t, l.AddOrUpdate(ctx, lineItem("p2", "3", 5), 2))
		return l, store
	}

	decremented, decStore := build()
	require.NoError(t, decremented.DecrementQuantity(ctx, "p1"))

	removed, remStore := build()
	require.NoError(t, removed.Remove(ctx, "p1"))

	assert.Equal(t, removed.Items(), decremented.Items())
	decPersisted, _ := storedItems(t, decStore)
	remPersisted, _ := storedItems(t, remStore)
	assert.Equal(t, remPersisted, decPersisted)

	// Dropping the remaining line must leave the key absent either way.
	require.NoError(t, decremented.DecrementQuantity(ctx, "p2"))
	require.NoError(t, decremented.DecrementQuantity(ctx, "p2"))
	require.NoError(t, removed.Remove(ctx, "p2"))
	assert.False(t, decStore.Has(storage.KeyCartItems))
	assert.False(t, remStore.Has(storage.KeyCartItems))
}

func TestDecrementQuantity(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 3))
	require.NoError(t, l.DecrementQuantity(ctx, "p1"))

	item, ok := l.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)

	persisted, _ := storedItems(t, store)
	assert.Equal(t, 2, persisted[0].Quantity)
}

func TestDecrementQuantity_Absent_NoOp(t *testing.T) {
	l, store := newTestLedger(t)

	require.NoError(t, l.DecrementQuantity(context.Background(), "missing"))
	assert.Empty(t, l.Items())
	assert.False(t, store.Has(storage.KeyCartItems))
}

// --- Increment ---

func TestIncrementQuantity_StockCeiling(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 3), 3))
	before, _ := storedItems(t, store)

	err := l.IncrementQuantity(ctx, "p1")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStockLimit)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "STOCK_LIMIT", appErr.Code)

	item, _ := l.Get("p1")
	assert.Equal(t, 3, item.Quantity)
	after, _ := storedItems(t, store)
	assert.Equal(t, before, after)
}

func TestIncrementQuantity_BelowCeiling(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 3), 1))
	require.NoError(t, l.IncrementQuantity(ctx, "p1"))
	require.NoError(t, l.IncrementQuantity(ctx, "p1"))

	item, _ := l.Get("p1")
	assert.Equal(t, 3, item.Quantity)
	persisted, _ := storedItems(t, store)
	assert.Equal(t, 3, persisted[0].Quantity)
}

func TestIncrementQuantity_Absent(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.IncrementQuantity(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Totals ---

func TestTotal(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	assert.True(t, decimal.Zero.Equal(l.Total()))

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 2))
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p2", "5.5", 5), 1))

	assert.Equal(t, "25.50", l.Total().StringFixed(2))
	assert.Equal(t, 3, l.Count())
}

func TestTotal_RecomputedAfterMutation(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "0.10", 5), 1))
	require.NoError(t, l.IncrementQuantity(ctx, "p1"))
	require.NoError(t, l.IncrementQuantity(ctx, "p1"))

	assert.True(t, decimal.RequireFromString("0.30").Equal(l.Total()))
}

// --- Load / Replace / Clear ---

func TestOpen_HydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	seed := []domain.LineItem{lineItem("p1", "4", 5)}
	seed[0].Quantity = 2
	require.NoError(t, storage.SetJSON(ctx, store, storage.KeyCartItems, seed))

	l, err := Open(ctx, store, newTestLogger())
	require.NoError(t, err)
	assert.True(t, l.Contains("p1"))
	assert.Equal(t, 2, l.Count())
}

func TestOpen_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, storage.KeyCartItems, []byte("{not json")))

	_, err := Open(ctx, store, newTestLogger())
	assert.Error(t, err)
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("old", "1", 5), 1))

	a := lineItem("a", "2", 5)
	a.Quantity = 2
	require.NoError(t, l.Replace(ctx, []domain.LineItem{a}))

	assert.False(t, l.Contains("old"))
	assert.Equal(t, 2, l.Count())
	persisted, _ := storedItems(t, store)
	require.Len(t, persisted, 1)
	assert.Equal(t, "a", persisted[0].ProductID)
}

func TestReplace_RejectsInvalidLines(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	zero := lineItem("a", "2", 5)
	err := l.Replace(ctx, []domain.LineItem{zero})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	dup := lineItem("a", "2", 5)
	dup.Quantity = 1
	err = l.Replace(ctx, []domain.LineItem{dup, dup})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestReplace_EmptyDeletesKey(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("a", "1", 5), 1))

	require.NoError(t, l.Replace(ctx, nil))
	assert.False(t, store.Has(storage.KeyCartItems))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("a", "1", 5), 1))

	require.NoError(t, l.Clear(ctx))
	assert.Empty(t, l.Items())
	assert.False(t, store.Has(storage.KeyCartItems))
}

// --- Store failures ---

func TestStoreFailure_LeavesMemoryUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &switchStore{Store: memory.NewStore()}
	l := NewLedger(store, newTestLogger())

	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 2))
	store.broken = true

	assert.ErrorIs(t, l.AddOrUpdate(ctx, lineItem("p2", "1", 5), 1), errStoreDown)
	assert.ErrorIs(t, l.IncrementQuantity(ctx, "p1"), errStoreDown)
	assert.ErrorIs(t, l.DecrementQuantity(ctx, "p1"), errStoreDown)
	assert.ErrorIs(t, l.Remove(ctx, "p1"), errStoreDown)
	assert.ErrorIs(t, l.Clear(ctx), errStoreDown)

	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestItems_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.AddOrUpdate(ctx, lineItem("p1", "10", 5), 1))

	items := l.Items()
	items[0].Quantity = 99

	item, _ := l.Get("p1")
	assert.Equal(t, 1, item.Quantity)
}
