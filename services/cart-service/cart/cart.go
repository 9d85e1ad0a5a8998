// Package cart holds a shopper's line items for one store and derives the
// totals. Every mutation is applied in memory and then written through to
// the injected Storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrMissingProduct  = errors.New("product id is required")
)

// ZeroQuantityPolicy decides what UpdateItem does when the new quantity is 0.
type ZeroQuantityPolicy int

const (
	KeepAtZero ZeroQuantityPolicy = iota
	RemoveAtZero
)

type Option func(*Cart)

func WithZeroQuantityPolicy(p ZeroQuantityPolicy) Option {
	return func(c *Cart) { c.zeroPolicy = p }
}

// WithIDGenerator replaces the UUID generator used for new line items.
func WithIDGenerator(fn func() string) Option {
	return func(c *Cart) { c.newID = fn }
}

type Cart struct {
	mu         sync.Mutex
	key        Key
	storage    Storage
	items      []Item
	zeroPolicy ZeroQuantityPolicy
	newID      func() string
}

// Open hydrates the cart for key from storage.
func Open(ctx context.Context, storage Storage, key Key, opts ...Option) (*Cart, error) {
	items, err := storage.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", key, err)
	}
	c := &Cart{
		key:     key,
		storage: storage,
		items:   items,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.items == nil {
		c.items = []Item{}
	}
	return c, nil
}

func (c *Cart) Key() Key { return c.key }

// AddItem appends a new line with a fresh id. Lines for the same product are
// never merged.
func (c *Cart) AddItem(ctx context.Context, productID string, quantity int, price decimal.Decimal, variants map[string]VariantOption) (Item, error) {
	if productID == "" {
		return Item{}, ErrMissingProduct
	}
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return Item{}, ErrInvalidPrice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	item := Item{
		ID:        c.newID(),
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
		Variants:  variants,
	}.clone()
	c.items = append(c.items, item)
	return item.clone(), c.persist(ctx)
}

// UpdateItem replaces the given fields on the line with id. Unknown ids
// leave the cart unchanged. The returned bool reports whether the line
// still exists afterwards.
func (c *Cart) UpdateItem(ctx context.Context, id string, upd ItemUpdate) (Item, bool, error) {
	if upd.Quantity != nil && *upd.Quantity < 0 {
		return Item{}, false, ErrInvalidQuantity
	}
	if upd.Price != nil && upd.Price.IsNegative() {
		return Item{}, false, ErrInvalidPrice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return Item{}, false, nil
	}

	item := c.items[idx]
	if upd.Quantity != nil {
		item.Quantity = *upd.Quantity
	}
	if upd.Price != nil {
		item.Price = *upd.Price
	}
	if upd.Variants != nil {
		item.Variants = upd.Variants
	}
	item = item.clone()

	if item.Quantity == 0 && c.zeroPolicy == RemoveAtZero {
		c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
		return item, false, c.persist(ctx)
	}
	c.items[idx] = item
	return item.clone(), true, c.persist(ctx)
}

// RemoveItem deletes the line with id. Removing an unknown id is a no-op
// but still writes the current state through.
func (c *Cart) RemoveItem(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx := c.indexOf(id); idx >= 0 {
		c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	}
	return c.persist(ctx)
}

// Clear empties the cart. The persisted entry remains as an empty list.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = []Item{}
	return c.persist(ctx)
}

// Item returns a copy of the line with id.
func (c *Cart) Item(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if idx := c.indexOf(id); idx >= 0 {
		return c.items[idx].clone(), true
	}
	return Item{}, false
}

// Items returns a copy of the current lines in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = it.clone()
	}
	return out
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// Subtotal is the sum of price times quantity, recomputed on every call.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *Cart) indexOf(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held. The in-memory state is kept even if
// the write fails.
func (c *Cart) persist(ctx context.Context) error {
	snapshot := make([]Item, len(c.items))
	copy(snapshot, c.items)
	if err := c.storage.Save(ctx, c.key, snapshot); err != nil {
		return fmt.Errorf("save cart %s: %w", c.key, err)
	}
	return nil
}
