package cart

import (
	"context"
	"testing"

	"github.com/example/autoparts-storefront/internal/infrastructure/backend"
	"github.com/example/autoparts-storefront/internal/infrastructure/backend/mocks"
	"github.com/example/autoparts-storefront/internal/infrastructure/localstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *mocks.MockBackend, *localstore.Memory) {
	t.Helper()
	mock := mocks.NewMockBackend()
	storage := localstore.NewMemory()
	store := NewStore("visitor-1", storage, mock)
	return store, mock, storage
}

func stockProduct(id string, price int64, stock int) backend.Product {
	return backend.Product{
		ID:    id,
		Name:  "Part " + id,
		Brand: "ACME",
		Price: decimal.NewFromInt(price),
		Stock: stock,
	}
}

func cartProduct(p backend.Product) Product {
	return Product{ID: p.ID, Name: p.Name, Price: p.Price, Brand: p.Brand}
}

// ============================================
// Add Item Tests
// ============================================

func TestStore_AddItem_CreatesLine(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)

	err := store.AddItem(context.Background(), cartProduct(p), 2)

	require.NoError(t, err)
	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "P1", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.NotEmpty(t, lines[0].ID)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.NewFromInt(100)))
}

func TestStore_AddItem_MergesSameProduct(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 3))

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 5, store.ItemCount())
}

func TestStore_AddItem_InsufficientStock(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P2", 100, 2)
	mock.SetProduct(p)

	err := store.AddItem(context.Background(), cartProduct(p), 3)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Empty(t, store.Lines(), "cart must be unchanged on stock failure")
}

func TestStore_AddItem_CombinedQuantityExceedsStock(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	ctx := context.Background()

	require.NoError(t, store.AddItem(ctx, cartProduct(p), 4))
	err := store.AddItem(ctx, cartProduct(p), 2)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity, "existing line must keep its quantity")
}

func TestStore_AddItem_ReservedStockCounts(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	p.Reserved = 4
	mock.SetProduct(p)

	err := store.AddItem(context.Background(), cartProduct(p), 2)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)
}

func TestStore_AddItem_InvalidInput(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	ctx := context.Background()

	assert.ErrorIs(t, store.AddItem(ctx, Product{}, 1), ErrInvalidProduct)
	assert.ErrorIs(t, store.AddItem(ctx, cartProduct(p), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, store.AddItem(ctx, cartProduct(p), -1), ErrInvalidQuantity)
}

func TestStore_AddItem_StorageFailureKeepsMemoryState(t *testing.T) {
	mock := mocks.NewMockBackend()
	storage := localstore.NewMemory()
	store := NewStore("visitor-1", storage, mock)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	storage.FailWrites = true

	err := store.AddItem(context.Background(), cartProduct(p), 1)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Len(t, store.Lines(), 1, "in-memory mutation stands")
}

func TestStore_AddItem_PreservesInsertionOrder(t *testing.T) {
	store, mock, _ := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"P3", "P1", "P2"} {
		p := stockProduct(id, 50, 10)
		mock.SetProduct(p)
		require.NoError(t, store.AddItem(ctx, cartProduct(p), 1))
	}

	lines := store.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "P3", lines[0].ProductID)
	assert.Equal(t, "P1", lines[1].ProductID)
	assert.Equal(t, "P2", lines[2].ProductID)
}

// ============================================
// Set Quantity Tests
// ============================================

func TestStore_SetQuantity_Updates(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID

	require.NoError(t, store.SetQuantity(ctx, lineID, 5))

	assert.Equal(t, 5, store.Lines()[0].Quantity)
}

func TestStore_SetQuantity_Idempotent(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID

	require.NoError(t, store.SetQuantity(ctx, lineID, 4))
	after := store.Lines()
	require.NoError(t, store.SetQuantity(ctx, lineID, 4))

	assert.Equal(t, after, store.Lines())
}

func TestStore_SetQuantity_ZeroRemovesLine(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID

	require.NoError(t, store.SetQuantity(ctx, lineID, 0))

	assert.Empty(t, store.Lines())
}

func TestStore_SetQuantity_AbsentLineIsNoop(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, store.SetQuantity(ctx, "no-such-line", 0))
	assert.NoError(t, store.SetQuantity(ctx, "no-such-line", 3))
}

func TestStore_SetQuantity_InsufficientStock(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 3)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID

	err := store.SetQuantity(ctx, lineID, 5)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, store.Lines()[0].Quantity, "quantity unchanged on failure")
}

// ============================================
// Remove / Clear Tests
// ============================================

func TestStore_RemoveItem(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID

	require.NoError(t, store.RemoveItem(ctx, lineID))
	assert.Empty(t, store.Lines())

	// Absent line is a no-op
	assert.NoError(t, store.RemoveItem(ctx, lineID))
}

func TestStore_Clear(t *testing.T) {
	store, mock, storage := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))

	require.NoError(t, store.Clear(ctx))

	assert.Empty(t, store.Lines())

	// The empty state is persisted, not just dropped from memory.
	reloaded := NewStore("visitor-1", storage, mock)
	assert.Empty(t, reloaded.Lines())
}

// ============================================
// Persistence Round-Trip Tests
// ============================================

func TestStore_RoundTrip(t *testing.T) {
	mock := mocks.NewMockBackend()
	storage := localstore.NewMemory()
	store := NewStore("visitor-1", storage, mock)
	ctx := context.Background()

	for i, id := range []string{"P1", "P2", "P3"} {
		p := stockProduct(id, int64(100*(i+1)), 10)
		mock.SetProduct(p)
		require.NoError(t, store.AddItem(ctx, cartProduct(p), i+1))
	}

	reloaded := NewStore("visitor-1", storage, mock)

	original := store.Lines()
	restored := reloaded.Lines()
	require.Len(t, restored, len(original))
	for i := range original {
		assert.Equal(t, original[i].ID, restored[i].ID)
		assert.Equal(t, original[i].ProductID, restored[i].ProductID)
		assert.Equal(t, original[i].Quantity, restored[i].Quantity)
		assert.True(t, original[i].UnitPrice.Equal(restored[i].UnitPrice))
	}
}

func TestStore_CorruptDocumentStartsEmpty(t *testing.T) {
	mock := mocks.NewMockBackend()
	storage := localstore.NewMemory()
	require.NoError(t, storage.Set(StorageKeyPrefix+"visitor-1", []byte("{not json")))

	store := NewStore("visitor-1", storage, mock)

	assert.Empty(t, store.Lines())
}

func TestStore_SeparateVisitorsSeparateCarts(t *testing.T) {
	mock := mocks.NewMockBackend()
	storage := localstore.NewMemory()
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()

	a := NewStore("visitor-a", storage, mock)
	b := NewStore("visitor-b", storage, mock)
	require.NoError(t, a.AddItem(ctx, cartProduct(p), 1))

	assert.Len(t, a.Lines(), 1)
	assert.Empty(t, b.Lines())
}

// ============================================
// Totals Tests
// ============================================

func TestStore_Totals_StandardShipping(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	require.NoError(t, store.AddItem(context.Background(), cartProduct(p), 2))

	totals := store.Totals(ShippingStandard)

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(200)), "subtotal = %s", totals.Subtotal)
	assert.True(t, totals.Tax.Equal(decimal.NewFromInt(28)), "tax = %s", totals.Tax)
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(228)), "total = %s", totals.Total)
	assert.Equal(t, 2, totals.ItemCount)
}

func TestStore_Totals_ExpressShipping(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	require.NoError(t, store.AddItem(context.Background(), cartProduct(p), 2))

	totals := store.Totals(ShippingExpress)

	assert.True(t, totals.Shipping.Equal(decimal.NewFromInt(50)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(278)), "total = %s", totals.Total)
}

func TestStore_Totals_EmptyCart(t *testing.T) {
	store, _, _ := newTestStore(t)

	totals := store.Totals(ShippingStandard)

	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Total.IsZero())
	assert.Equal(t, 0, totals.ItemCount)
}

// ============================================
// Stock Validation Tests
// ============================================

func TestStore_ValidateAgainstStock_NoShortages(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))

	shortages, err := store.ValidateAgainstStock(ctx)

	require.NoError(t, err)
	assert.Empty(t, shortages)
}

func TestStore_ValidateAgainstStock_ReportsShortage(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 5)
	mock.SetProduct(p)
	ctx := context.Background()
	require.NoError(t, store.AddItem(ctx, cartProduct(p), 3))

	// Stock dropped after the item was added.
	p.Stock = 0
	mock.SetProduct(p)

	shortages, err := store.ValidateAgainstStock(ctx)

	require.NoError(t, err)
	require.Len(t, shortages, 1)
	assert.Equal(t, Shortage{ProductID: "P1", Requested: 3, Available: 0}, shortages[0])
}

// ============================================
// Subscription Tests
// ============================================

func TestStore_Subscribe_NotifiedOnMutations(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 10)
	mock.SetProduct(p)
	ctx := context.Background()

	var got []ChangedEvent
	store.Subscribe(func(e ChangedEvent) { got = append(got, e) })

	require.NoError(t, store.AddItem(ctx, cartProduct(p), 2))
	lineID := store.Lines()[0].ID
	require.NoError(t, store.SetQuantity(ctx, lineID, 3))
	require.NoError(t, store.RemoveItem(ctx, lineID))

	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].ItemCount)
	assert.Equal(t, 3, got[1].ItemCount)
	assert.Equal(t, 0, got[2].ItemCount)
	assert.Equal(t, "visitor-1", got[0].VisitorID)
}

func TestStore_Subscribe_NotNotifiedOnFailedMutation(t *testing.T) {
	store, mock, _ := newTestStore(t)
	p := stockProduct("P1", 100, 1)
	mock.SetProduct(p)

	var count int
	store.Subscribe(func(ChangedEvent) { count++ })

	err := store.AddItem(context.Background(), cartProduct(p), 5)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Zero(t, count)
}
