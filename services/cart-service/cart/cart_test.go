package cart_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront-platform/backend/services/cart-service/cart"
)

var testKey = cart.Key{StoreID: "store-1", ShopperID: "shopper-1"}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intp(v int) *int { return &v }

func sequentialIDs() cart.Option {
	n := 0
	return cart.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("item-%d", n)
	})
}

func openCart(t *testing.T, storage cart.Storage, opts ...cart.Option) *cart.Cart {
	t.Helper()
	c, err := cart.Open(context.Background(), storage, testKey, opts...)
	require.NoError(t, err)
	return c
}

func TestOpen_EmptyWhenNothingStored(t *testing.T) {
	c := openCart(t, cart.NewMemoryStorage())
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, c.Subtotal().IsZero())
}

func TestAddItem_NeverMerges(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage(), sequentialIDs())

	first, err := c.AddItem(ctx, "prod-1", 1, d("10"), map[string]cart.VariantOption{"size": {Label: "S"}})
	require.NoError(t, err)
	second, err := c.AddItem(ctx, "prod-1", 2, d("12"), map[string]cart.VariantOption{"size": {Label: "L"}})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, "prod-1", first.ID)
	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "S", items[0].Variants["size"].Label)
	assert.Equal(t, "L", items[1].Variants["size"].Label)
	assert.Equal(t, 3, c.TotalItems())
}

func TestAddItem_Validation(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage())

	_, err := c.AddItem(ctx, "", 1, d("1"), nil)
	assert.ErrorIs(t, err, cart.ErrMissingProduct)
	_, err = c.AddItem(ctx, "p", 0, d("1"), nil)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	_, err = c.AddItem(ctx, "p", 1, d("-1"), nil)
	assert.ErrorIs(t, err, cart.ErrInvalidPrice)
	assert.Empty(t, c.Items())
}

func TestSubtotal_TracksEveryMutation(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage(), sequentialIDs())

	check := func() {
		t.Helper()
		want := decimal.Zero
		for _, it := range c.Items() {
			want = want.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
		assert.True(t, want.Equal(c.Subtotal()), "subtotal %s, want %s", c.Subtotal(), want)
	}

	a, _ := c.AddItem(ctx, "p1", 2, d("9.99"), nil)
	check()
	b, _ := c.AddItem(ctx, "p2", 1, d("0.10"), nil)
	check()
	_, _, err := c.UpdateItem(ctx, a.ID, cart.ItemUpdate{Quantity: intp(5)})
	require.NoError(t, err)
	check()
	newPrice := d("1.05")
	_, _, err = c.UpdateItem(ctx, b.ID, cart.ItemUpdate{Price: &newPrice})
	require.NoError(t, err)
	check()
	require.NoError(t, c.RemoveItem(ctx, a.ID))
	check()

	assert.Equal(t, "1.05", c.Subtotal().String())
}

func TestUpdateItem_ZeroQuantityPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("remove at zero", func(t *testing.T) {
		c := openCart(t, cart.NewMemoryStorage(), cart.WithZeroQuantityPolicy(cart.RemoveAtZero))
		item, err := c.AddItem(ctx, "p1", 3, d("4.50"), nil)
		require.NoError(t, err)

		_, exists, err := c.UpdateItem(ctx, item.ID, cart.ItemUpdate{Quantity: intp(0)})
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Empty(t, c.Items())
		assert.True(t, c.Subtotal().IsZero())
	})

	t.Run("keep at zero", func(t *testing.T) {
		c := openCart(t, cart.NewMemoryStorage())
		item, err := c.AddItem(ctx, "p1", 3, d("4.50"), nil)
		require.NoError(t, err)

		updated, exists, err := c.UpdateItem(ctx, item.ID, cart.ItemUpdate{Quantity: intp(0)})
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 0, updated.Quantity)
		assert.Len(t, c.Items(), 1)
		assert.True(t, c.Subtotal().IsZero())
	})
}

func TestUpdateItem_UnknownIDIsNoop(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage())
	_, err := c.AddItem(ctx, "p1", 1, d("2"), nil)
	require.NoError(t, err)
	before := c.Items()

	_, exists, err := c.UpdateItem(ctx, "missing", cart.ItemUpdate{Quantity: intp(9)})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, before, c.Items())

	_, _, err = c.UpdateItem(ctx, before[0].ID, cart.ItemUpdate{Quantity: intp(-1)})
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestUpdateItem_ReplacesVariants(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage())
	item, err := c.AddItem(ctx, "p1", 1, d("2"), map[string]cart.VariantOption{"size": {Label: "S"}})
	require.NoError(t, err)

	updated, _, err := c.UpdateItem(ctx, item.ID, cart.ItemUpdate{
		Variants: map[string]cart.VariantOption{"color": {Label: "red"}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]cart.VariantOption{"color": {Label: "red"}}, updated.Variants)
	assert.Equal(t, 1, updated.Quantity)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage(), sequentialIDs())
	a, _ := c.AddItem(ctx, "p1", 1, d("1"), nil)
	_, _ = c.AddItem(ctx, "p2", 1, d("2"), nil)

	require.NoError(t, c.RemoveItem(ctx, a.ID))
	once := c.Items()
	require.NoError(t, c.RemoveItem(ctx, a.ID))
	assert.Equal(t, once, c.Items())
	require.NoError(t, c.RemoveItem(ctx, "never-existed"))
	assert.Equal(t, once, c.Items())
}

func TestRemovingLastItemKeepsPersistedEntry(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	c := openCart(t, storage)
	item, _ := c.AddItem(ctx, "p1", 1, d("1"), nil)

	require.NoError(t, c.RemoveItem(ctx, item.ID))
	raw, ok := storage.Raw(testKey)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	c := openCart(t, storage)
	_, _ = c.AddItem(ctx, "p1", 2, d("3"), nil)

	require.NoError(t, c.Clear(ctx))
	assert.Empty(t, c.Items())
	raw, ok := storage.Raw(testKey)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestWriteThrough_ReopenSeesState(t *testing.T) {
	ctx := context.Background()
	storage := cart.NewMemoryStorage()
	c := openCart(t, storage)
	opt := d("2")
	item, err := c.AddItem(ctx, "p1", 2, d("12.50"), map[string]cart.VariantOption{"size": {Label: "L", Price: &opt}})
	require.NoError(t, err)

	reopened := openCart(t, storage)
	items := reopened.Items()
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
	assert.True(t, d("25").Equal(reopened.Subtotal()))
	assert.True(t, opt.Equal(*items[0].Variants["size"].Price))

	other := cart.Key{StoreID: "store-2", ShopperID: "shopper-1"}
	c2, err := cart.Open(ctx, storage, other)
	require.NoError(t, err)
	assert.Empty(t, c2.Items())
}

func TestItemsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := openCart(t, cart.NewMemoryStorage())
	_, _ = c.AddItem(ctx, "p1", 1, d("1"), map[string]cart.VariantOption{"size": {Label: "S"}})

	items := c.Items()
	items[0].Quantity = 99
	items[0].Variants["size"] = cart.VariantOption{Label: "XL"}

	fresh := c.Items()
	assert.Equal(t, 1, fresh[0].Quantity)
	assert.Equal(t, "S", fresh[0].Variants["size"].Label)
}

type failingStorage struct {
	cart.Storage
	saveErr error
}

func (f *failingStorage) Save(ctx context.Context, key cart.Key, items []cart.Item) error {
	return f.saveErr
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{Storage: cart.NewMemoryStorage(), saveErr: errors.New("redis down")}
	c := openCart(t, storage)

	_, err := c.AddItem(ctx, "p1", 1, d("5"), nil)
	assert.ErrorContains(t, err, "redis down")
	assert.Len(t, c.Items(), 1)
}

type brokenLoad struct{ cart.Storage }

func (brokenLoad) Load(ctx context.Context, key cart.Key) ([]cart.Item, error) {
	return nil, errors.New("timeout")
}

func TestOpen_LoadError(t *testing.T) {
	_, err := cart.Open(context.Background(), brokenLoad{}, testKey)
	assert.ErrorContains(t, err, "timeout")
}
