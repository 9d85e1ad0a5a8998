package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-platform/backend/services/order-service/models"
	"github.com/storefront-platform/backend/services/order-service/repository"
)

type mockStoreRepo struct {
	findFn   func(ctx context.Context, id uuid.UUID) (*models.Store, error)
	createFn func(ctx context.Context, store *models.Store) error
	updateFn func(ctx context.Context, id uuid.UUID, settings repository.StoreSettings) error
}

func (m *mockStoreRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return m.findFn(ctx, id)
}

func (m *mockStoreRepo) Create(ctx context.Context, store *models.Store) error {
	return m.createFn(ctx, store)
}

func (m *mockStoreRepo) UpdateSettings(ctx context.Context, id uuid.UUID, settings repository.StoreSettings) error {
	return m.updateFn(ctx, id, settings)
}

type mockUserRepo struct {
	findFn   func(ctx context.Context, address string) (*models.User, error)
	updateFn func(ctx context.Context, address, name, email string) error
	addKeyFn func(ctx context.Context, key *models.SigningKey) (bool, error)
}

func (m *mockUserRepo) FindByAddress(ctx context.Context, address string) (*models.User, error) {
	return m.findFn(ctx, address)
}

func (m *mockUserRepo) UpdateDetails(ctx context.Context, address, name, email string) error {
	return m.updateFn(ctx, address, name, email)
}

func (m *mockUserRepo) AddKey(ctx context.Context, key *models.SigningKey) (bool, error) {
	return m.addKeyFn(ctx, key)
}

type mockOrderRepo struct {
	findByStoreFn func(ctx context.Context, storeID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	findFn        func(ctx context.Context, orderID, storeID uuid.UUID) (*models.Order, error)
	transitionFn  func(ctx context.Context, orderID uuid.UUID, from, to string, at time.Time) error
	createFn      func(ctx context.Context, order *models.Order) (bool, error)
}

func (m *mockOrderRepo) FindByStore(ctx context.Context, storeID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	return m.findByStoreFn(ctx, storeID, page, limit)
}

func (m *mockOrderRepo) FindByIDAndStore(ctx context.Context, orderID, storeID uuid.UUID) (*models.Order, error) {
	return m.findFn(ctx, orderID, storeID)
}

func (m *mockOrderRepo) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to string, at time.Time) error {
	return m.transitionFn(ctx, orderID, from, to, at)
}

func (m *mockOrderRepo) CreateFromCheckout(ctx context.Context, order *models.Order) (bool, error) {
	return m.createFn(ctx, order)
}

type publishedEvent struct {
	topic     string
	eventType string
	payload   any
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topicArn, eventType string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{topicArn, eventType, v})
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: map[string]int{}}
}

func (f *fakeMetrics) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[metricName]++
	return nil
}

func (f *fakeMetrics) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return nil
}

func (f *fakeMetrics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}
