package services_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront-platform/backend/pkg/signing/signingtest"
	"github.com/storefront-platform/backend/services/cart-service/cart"
	"github.com/storefront-platform/backend/services/cart-service/catalog"
	"github.com/storefront-platform/backend/services/cart-service/models"
	"github.com/storefront-platform/backend/services/cart-service/services"
)

const storeID = "6f1c1c64-2f2e-4f7e-9a43-1d1f0d4d9d11"

var key = cart.Key{StoreID: storeID, ShopperID: "shopper-1"}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

type fakeCatalog struct {
	products map[string]*models.Product
	err      error
}

func (f *fakeCatalog) Product(ctx context.Context, storeID, productID string) (*models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

type publishedEvent struct {
	topic     string
	eventType string
	event     models.CheckoutEvent
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, topicArn, eventType string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{topicArn, eventType, v.(models.CheckoutEvent)})
	return nil
}

type fakeIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (f *fakeIdempotency) GetIdempotency(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeIdempotency) SetIdempotency(ctx context.Context, key, checkoutID string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = checkoutID
	return nil
}

type fakeMetrics struct{ counts map[string]int }

func (f *fakeMetrics) RecordCount(ctx context.Context, name string, dims map[string]string) error {
	f.counts[name]++
	return nil
}

func (f *fakeMetrics) RecordLatency(ctx context.Context, name string, d time.Duration, dims map[string]string) error {
	return nil
}

type fixture struct {
	svc       services.CartService
	storage   *cart.MemoryStorage
	catalog   *fakeCatalog
	publisher *fakePublisher
	idem      *fakeIdempotency
	metrics   *fakeMetrics
}

func tee() *models.Product {
	stock := 5
	return &models.Product{
		ID:      "tee",
		StoreID: storeID,
		Name:    "Tee",
		Price:   decimal.RequireFromString("20"),
		Variants: []models.Variant{
			{Name: "size", Options: []models.VariantOptionDef{{Label: "S", Price: dp("0")}, {Label: "L", Price: dp("2")}}},
			{Name: "color", Options: []models.VariantOptionDef{{Label: "red", Price: dp("0")}, {Label: "blue", Price: dp("1")}}},
		},
		TotalStocks:    &stock,
		VariantPricing: cart.PricingAdditive,
	}
}

func newFixture() *fixture {
	f := &fixture{
		storage:   cart.NewMemoryStorage(),
		catalog:   &fakeCatalog{products: map[string]*models.Product{"tee": tee()}},
		publisher: &fakePublisher{},
		idem:      &fakeIdempotency{keys: map[string]string{}},
		metrics:   &fakeMetrics{counts: map[string]int{}},
	}
	f.svc = services.NewCartService(services.Deps{
		Storage:     f.storage,
		Catalog:     f.catalog,
		Idempotency: f.idem,
		Publisher:   f.publisher,
		Metrics:     f.metrics,
		TopicArn:    "arn:aws:sns:us-east-1:000000000000:checkout",
		Logger:      zap.NewNop(),
	})
	return f
}

func intp(v int) *int { return &v }

func TestAddItem_ResolvesVariantPrice(t *testing.T) {
	f := newFixture()
	view, svcErr := f.svc.AddItem(context.Background(), key, &models.AddItemRequest{
		ProductID: "tee",
		Quantity:  2,
		Variants:  map[string]string{"size": "L", "color": "blue"},
	})
	require.Nil(t, svcErr)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "23", view.Items[0].Price.String())
	assert.Equal(t, "46", view.Subtotal.String())
	assert.Equal(t, 2, view.TotalItems)
	assert.NotEmpty(t, view.CartDigest)
}

func TestAddItem_OverridePricing(t *testing.T) {
	f := newFixture()
	p := tee()
	p.VariantPricing = cart.PricingOverride
	f.catalog.products["tee"] = p

	view, svcErr := f.svc.AddItem(context.Background(), key, &models.AddItemRequest{
		ProductID: "tee", Quantity: 1, Variants: map[string]string{"size": "L", "color": "blue"},
	})
	require.Nil(t, svcErr)
	assert.Equal(t, "3", view.Items[0].Price.String())
}

func TestAddItem_ClampsToStock(t *testing.T) {
	f := newFixture()
	view, svcErr := f.svc.AddItem(context.Background(), key, &models.AddItemRequest{ProductID: "tee", Quantity: 50})
	require.Nil(t, svcErr)
	assert.Equal(t, 5, view.TotalItems)

	zero := 0
	f.catalog.products["tee"].TotalStocks = &zero
	_, svcErr = f.svc.AddItem(context.Background(), key, &models.AddItemRequest{ProductID: "tee", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusConflict, svcErr.StatusCode)
}

func TestAddItem_Errors(t *testing.T) {
	f := newFixture()

	_, svcErr := f.svc.AddItem(context.Background(), key, &models.AddItemRequest{ProductID: "nope", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusNotFound, svcErr.StatusCode)
	assert.Equal(t, "product not found", svcErr.Message)

	_, svcErr = f.svc.AddItem(context.Background(), key, &models.AddItemRequest{ProductID: "tee", Quantity: 1, Variants: map[string]string{"size": "XXL"}})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)

	f.catalog.err = errors.New("dynamo down")
	_, svcErr = f.svc.AddItem(context.Background(), key, &models.AddItemRequest{ProductID: "tee", Quantity: 1})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Equal(t, "request failed", svcErr.Message)
}

func TestNegativeVariantPriceIsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p := tee()
	p.Price = decimal.RequireFromString("1")
	p.Variants[0].Options = append(p.Variants[0].Options, models.VariantOptionDef{Label: "XS", Price: dp("-5")})
	f.catalog.products["tee"] = p

	_, svcErr := f.svc.AddItem(ctx, key, &models.AddItemRequest{ProductID: "tee", Quantity: 1, Variants: map[string]string{"size": "XS"}})
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.Equal(t, "invalid price", svcErr.Message)

	view, svcErr := f.svc.AddItem(ctx, key, &models.AddItemRequest{ProductID: "tee", Quantity: 1, Variants: map[string]string{"size": "S"}})
	require.Nil(t, svcErr)
	itemID := view.Items[0].ID

	_, svcErr = f.svc.UpdateItem(ctx, key, itemID, &models.UpdateItemRequest{Variants: map[string]string{"size": "XS"}})
	require.NotNil(t, svcErr)
	assert.Equal(t, "invalid price", svcErr.Message)

	items, err := f.storage.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].Price.String())
}

func TestUpdateItem(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	view, _ := f.svc.AddItem(ctx, key, &models.AddItemRequest{ProductID: "tee", Quantity: 3, Variants: map[string]string{"size": "S"}})
	itemID := view.Items[0].ID

	view, svcErr := f.svc.UpdateItem(ctx, key, itemID, &models.UpdateItemRequest{Variants: map[string]string{"size": "L"}})
	require.Nil(t, svcErr)
	assert.Equal(t, "22", view.Items[0].Price.String())
	assert.Equal(t, 3, view.Items[0].Quantity)

	view, svcErr = f.svc.UpdateItem(ctx, key, itemID, &models.UpdateItemRequest{Quantity: intp(99)})
	require.Nil(t, svcErr)
	assert.Equal(t, 5, view.Items[0].Quantity)

	view, svcErr = f.svc.UpdateItem(ctx, key, "missing", &models.UpdateItemRequest{Quantity: intp(1)})
	require.Nil(t, svcErr)
	assert.Len(t, view.Items, 1)

	view, svcErr = f.svc.UpdateItem(ctx, key, itemID, &models.UpdateItemRequest{Quantity: intp(0)})
	require.Nil(t, svcErr)
	assert.Empty(t, view.Items)
	assert.True(t, view.Subtotal.IsZero())
}

func TestRemoveAndClear(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	view, _ := f.svc.AddItem(ctx, key, &models.AddItemRequest{ProductID: "tee", Quantity: 1})
	_, _ = f.svc.AddItem(ctx, key, &models.AddItemRequest{ProductID: "tee", Quantity: 1})

	view, svcErr := f.svc.RemoveItem(ctx, key, view.Items[0].ID)
	require.Nil(t, svcErr)
	assert.Len(t, view.Items, 1)

	view, svcErr = f.svc.Clear(ctx, key)
	require.Nil(t, svcErr)
	assert.Empty(t, view.Items)
	raw, ok := f.storage.Raw(key)
	require.True(t, ok)
	assert.JSONEq(t, "[]", string(raw))
}

func (f *fixture) signedCheckout(t *testing.T, wallet *signingtest.Wallet, storeID, digest, subtotal string) *models.CheckoutRequest {
	t.Helper()
	data := signingtest.OrderData(storeID, digest, subtotal, time.Now().Unix())
	return &models.CheckoutRequest{Address: wallet.Address, Data: data, Sig: wallet.SignTypedData(t, data)}
}

func (f *fixture) fillCart(t *testing.T) *models.CartView {
	t.Helper()
	view, svcErr := f.svc.AddItem(context.Background(), key, &models.AddItemRequest{
		ProductID: "tee", Quantity: 2, Variants: map[string]string{"size": "L"},
	})
	require.Nil(t, svcErr)
	return view
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture()
	view := f.fillCart(t)
	wallet := signingtest.NewWallet(t)

	res, svcErr := f.svc.Checkout(context.Background(), key, f.signedCheckout(t, wallet, storeID, view.CartDigest, view.Subtotal.String()), "idem-1")
	require.Nil(t, svcErr)
	assert.NotEmpty(t, res.CheckoutID)
	assert.Equal(t, "44", res.Subtotal.String())

	require.Len(t, f.publisher.events, 1)
	evt := f.publisher.events[0]
	assert.Equal(t, "checkout.requested", evt.eventType)
	assert.Equal(t, res.CheckoutID, evt.event.CheckoutID)
	assert.Equal(t, storeID, evt.event.StoreID)
	assert.Equal(t, "shopper-1", evt.event.ShopperID)
	assert.Equal(t, view.CartDigest, evt.event.CartDigest)
	assert.Len(t, evt.event.Items, 1)
	assert.Equal(t, 1, f.metrics.counts["CartCheckouts"])

	after, _ := f.svc.GetCart(context.Background(), key)
	assert.Empty(t, after.Items)

	replay, svcErr := f.svc.Checkout(context.Background(), key, &models.CheckoutRequest{}, "idem-1")
	require.Nil(t, svcErr)
	assert.True(t, replay.Replayed)
	assert.Equal(t, res.CheckoutID, replay.CheckoutID)
	assert.Len(t, f.publisher.events, 1)
}

func TestCheckout_Rejections(t *testing.T) {
	wallet := signingtest.NewWallet(t)

	cases := []struct {
		name  string
		build func(f *fixture, view *models.CartView) *models.CheckoutRequest
		code  int
		msg   string
	}{
		{
			name: "wrong signer",
			build: func(f *fixture, view *models.CartView) *models.CheckoutRequest {
				req := f.signedCheckout(t, wallet, storeID, view.CartDigest, view.Subtotal.String())
				req.Address = signingtest.NewWallet(t).Address
				return req
			},
			code: http.StatusBadRequest, msg: "invalid signature",
		},
		{
			name: "malformed address",
			build: func(f *fixture, view *models.CartView) *models.CheckoutRequest {
				req := f.signedCheckout(t, wallet, storeID, view.CartDigest, view.Subtotal.String())
				req.Address = "0xabc"
				return req
			},
			code: http.StatusBadRequest, msg: "invalid address",
		},
		{
			name: "stale cart digest",
			build: func(f *fixture, view *models.CartView) *models.CheckoutRequest {
				return f.signedCheckout(t, wallet, storeID, "c3RhbGU", view.Subtotal.String())
			},
			code: http.StatusBadRequest, msg: "digest mismatch",
		},
		{
			name: "other store",
			build: func(f *fixture, view *models.CartView) *models.CheckoutRequest {
				return f.signedCheckout(t, wallet, "0b6b0d8e-5d0f-4a65-8c4c-2a8f3c1f6e27", view.CartDigest, view.Subtotal.String())
			},
			code: http.StatusBadRequest, msg: "invalid payload",
		},
		{
			name: "subtotal mismatch",
			build: func(f *fixture, view *models.CartView) *models.CheckoutRequest {
				return f.signedCheckout(t, wallet, storeID, view.CartDigest, "0.01")
			},
			code: http.StatusBadRequest, msg: "invalid payload",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			view := f.fillCart(t)

			_, svcErr := f.svc.Checkout(context.Background(), key, tc.build(f, view), "")
			require.NotNil(t, svcErr)
			assert.Equal(t, tc.code, svcErr.StatusCode)
			assert.Equal(t, tc.msg, svcErr.Message)
			assert.Empty(t, f.publisher.events)

			still, _ := f.svc.GetCart(context.Background(), key)
			assert.Len(t, still.Items, 1)
		})
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture()
	_, svcErr := f.svc.Checkout(context.Background(), key, &models.CheckoutRequest{}, "")
	require.NotNil(t, svcErr)
	assert.Equal(t, "cart is empty", svcErr.Message)
}

func TestCheckout_PublishFailureKeepsCart(t *testing.T) {
	f := newFixture()
	view := f.fillCart(t)
	f.publisher.err = errors.New("sns unavailable")
	wallet := signingtest.NewWallet(t)

	_, svcErr := f.svc.Checkout(context.Background(), key, f.signedCheckout(t, wallet, storeID, view.CartDigest, view.Subtotal.String()), "idem-2")
	require.NotNil(t, svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)

	still, _ := f.svc.GetCart(context.Background(), key)
	assert.Len(t, still.Items, 1)
	assert.Empty(t, f.idem.keys)
}

func TestCartDigest_EmptyCart(t *testing.T) {
	d1, err := services.CartDigest(nil)
	require.NoError(t, err)
	d2, err := services.CartDigest([]cart.Item{})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}
