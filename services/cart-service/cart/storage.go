package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Key scopes a cart to one store tenant and one shopper.
type Key struct {
	StoreID   string
	ShopperID string
}

func (k Key) String() string {
	return fmt.Sprintf("store:%s:shopper:%s", k.StoreID, k.ShopperID)
}

// Storage persists the item list of a cart. Load returns an empty slice
// when nothing has been saved for key.
type Storage interface {
	Load(ctx context.Context, key Key) ([]Item, error)
	Save(ctx context.Context, key Key, items []Item) error
}

// MemoryStorage keeps carts as JSON in process memory, the same encoding
// the Redis storage writes.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[Key][]byte)}
}

func (m *MemoryStorage) Load(_ context.Context, key Key) ([]Item, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return []Item{}, nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", key, err)
	}
	return items, nil
}

func (m *MemoryStorage) Save(_ context.Context, key Key, items []Item) error {
	if items == nil {
		items = []Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// Raw returns the persisted bytes for key.
func (m *MemoryStorage) Raw(key Key) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[key]
	return raw, ok
}
