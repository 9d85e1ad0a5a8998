package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
	"github.com/storefront-platform/backend/pkg/signing"
	"github.com/storefront-platform/backend/services/cart-service/cart"
	"github.com/storefront-platform/backend/services/cart-service/catalog"
	"github.com/storefront-platform/backend/services/cart-service/models"
	"github.com/storefront-platform/backend/services/common/logger"
)

// ServiceError is a typed error with an HTTP status code.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string { return e.Message }

var (
	errRequestFailed   = &ServiceError{StatusCode: http.StatusInternalServerError, Message: "request failed"}
	errProductNotFound = &ServiceError{StatusCode: http.StatusNotFound, Message: "product not found"}
	errUnknownVariant  = &ServiceError{StatusCode: http.StatusBadRequest, Message: "unknown variant"}
	errInvalidPrice    = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid price"}
	errOutOfStock      = &ServiceError{StatusCode: http.StatusConflict, Message: "out of stock"}
	errEmptyCart       = &ServiceError{StatusCode: http.StatusBadRequest, Message: "cart is empty"}
	errInvalidPayload  = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid payload"}
	errInvalidAddress  = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid address"}
	errInvalidSig      = &ServiceError{StatusCode: http.StatusBadRequest, Message: "invalid signature"}
	errDigestMismatch  = &ServiceError{StatusCode: http.StatusBadRequest, Message: "digest mismatch"}
)

// EventPublisher is satisfied by *awspkg.SNSClient.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, v any) error
}

// IdempotencyStore remembers which checkout an Idempotency-Key produced.
type IdempotencyStore interface {
	GetIdempotency(ctx context.Context, key string) (string, error)
	SetIdempotency(ctx context.Context, key, checkoutID string, ttl time.Duration) error
}

type CartService interface {
	GetCart(ctx context.Context, key cart.Key) (*models.CartView, *ServiceError)
	AddItem(ctx context.Context, key cart.Key, req *models.AddItemRequest) (*models.CartView, *ServiceError)
	UpdateItem(ctx context.Context, key cart.Key, itemID string, req *models.UpdateItemRequest) (*models.CartView, *ServiceError)
	RemoveItem(ctx context.Context, key cart.Key, itemID string) (*models.CartView, *ServiceError)
	Clear(ctx context.Context, key cart.Key) (*models.CartView, *ServiceError)
	Checkout(ctx context.Context, key cart.Key, req *models.CheckoutRequest, idempotencyKey string) (*models.CheckoutResult, *ServiceError)
}

type cartServiceImpl struct {
	storage     cart.Storage
	catalog     catalog.Catalog
	idempotency IdempotencyStore
	publisher   EventPublisher
	metrics     awspkg.Metrics
	topicArn    string
	idemTTL     time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

type Deps struct {
	Storage     cart.Storage
	Catalog     catalog.Catalog
	Idempotency IdempotencyStore
	Publisher   EventPublisher
	Metrics     awspkg.Metrics
	TopicArn    string
	IdemTTL     time.Duration
	Logger      *zap.Logger
}

func NewCartService(d Deps) CartService {
	if d.IdemTTL == 0 {
		d.IdemTTL = 24 * time.Hour
	}
	return &cartServiceImpl{
		storage:     d.Storage,
		catalog:     d.Catalog,
		idempotency: d.Idempotency,
		publisher:   d.Publisher,
		metrics:     d.Metrics,
		topicArn:    d.TopicArn,
		idemTTL:     d.IdemTTL,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// CartDigest commits to the exact item list: base64url(SHA-256) of its JSON.
func CartDigest(items []cart.Item) (string, error) {
	if items == nil {
		items = []cart.Item{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return signing.Digest(string(raw)), nil
}

func (s *cartServiceImpl) open(ctx context.Context, key cart.Key) (*cart.Cart, *ServiceError) {
	c, err := cart.Open(ctx, s.storage, key, cart.WithZeroQuantityPolicy(cart.RemoveAtZero))
	if err != nil {
		s.log(ctx).Error("failed to load cart", zap.String("cart", key.String()), zap.Error(err))
		return nil, errRequestFailed
	}
	return c, nil
}

func (s *cartServiceImpl) view(ctx context.Context, c *cart.Cart) (*models.CartView, *ServiceError) {
	items := c.Items()
	digest, err := CartDigest(items)
	if err != nil {
		s.log(ctx).Error("failed to digest cart", zap.Error(err))
		return nil, errRequestFailed
	}
	return &models.CartView{
		StoreID:    c.Key().StoreID,
		Items:      items,
		TotalItems: c.TotalItems(),
		Subtotal:   c.Subtotal(),
		CartDigest: digest,
	}, nil
}

func (s *cartServiceImpl) persistFailed(ctx context.Context, op string, key cart.Key, err error) *ServiceError {
	s.log(ctx).Error("failed to persist cart", zap.String("op", op), zap.String("cart", key.String()), zap.Error(err))
	return errRequestFailed
}

func (s *cartServiceImpl) GetCart(ctx context.Context, key cart.Key) (*models.CartView, *ServiceError) {
	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	return s.view(ctx, c)
}

func (s *cartServiceImpl) product(ctx context.Context, storeID, productID string) (*models.Product, *ServiceError) {
	p, err := s.catalog.Product(ctx, storeID, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, errProductNotFound
	}
	if err != nil {
		s.log(ctx).Error("catalog lookup failed", zap.String("store_id", storeID), zap.String("product_id", productID), zap.Error(err))
		return nil, errRequestFailed
	}
	return p, nil
}

func (s *cartServiceImpl) AddItem(ctx context.Context, key cart.Key, req *models.AddItemRequest) (*models.CartView, *ServiceError) {
	p, svcErr := s.product(ctx, key.StoreID, req.ProductID)
	if svcErr != nil {
		return nil, svcErr
	}
	selected, err := p.ResolveVariants(req.Variants)
	if err != nil {
		return nil, errUnknownVariant
	}
	quantity := cart.ClampQuantity(req.Quantity, p.TotalStocks)
	if quantity == 0 {
		return nil, errOutOfStock
	}

	price := p.UnitPrice(selected)
	if price.IsNegative() {
		return nil, errInvalidPrice
	}

	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	if _, err := c.AddItem(ctx, p.ID, quantity, price, selected); err != nil {
		return nil, s.persistFailed(ctx, "add", key, err)
	}
	return s.view(ctx, c)
}

func (s *cartServiceImpl) UpdateItem(ctx context.Context, key cart.Key, itemID string, req *models.UpdateItemRequest) (*models.CartView, *ServiceError) {
	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	item, ok := c.Item(itemID)
	if !ok {
		return s.view(ctx, c)
	}

	var upd cart.ItemUpdate
	if req.Variants != nil || req.Quantity != nil {
		p, svcErr := s.product(ctx, key.StoreID, item.ProductID)
		if svcErr != nil {
			return nil, svcErr
		}
		if req.Variants != nil {
			selected, err := p.ResolveVariants(req.Variants)
			if err != nil {
				return nil, errUnknownVariant
			}
			if selected == nil {
				selected = map[string]cart.VariantOption{}
			}
			price := p.UnitPrice(selected)
			if price.IsNegative() {
				return nil, errInvalidPrice
			}
			upd.Variants = selected
			upd.Price = &price
		}
		if req.Quantity != nil {
			q := cart.ClampQuantity(*req.Quantity, p.TotalStocks)
			upd.Quantity = &q
		}
	}

	if _, _, err := c.UpdateItem(ctx, itemID, upd); err != nil {
		return nil, s.persistFailed(ctx, "update", key, err)
	}
	return s.view(ctx, c)
}

func (s *cartServiceImpl) RemoveItem(ctx context.Context, key cart.Key, itemID string) (*models.CartView, *ServiceError) {
	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	if err := c.RemoveItem(ctx, itemID); err != nil {
		return nil, s.persistFailed(ctx, "remove", key, err)
	}
	return s.view(ctx, c)
}

func (s *cartServiceImpl) Clear(ctx context.Context, key cart.Key) (*models.CartView, *ServiceError) {
	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	if err := c.Clear(ctx); err != nil {
		return nil, s.persistFailed(ctx, "clear", key, err)
	}
	return s.view(ctx, c)
}

// Checkout verifies the buyer's wallet signature over an Order message that
// commits to the current cart, publishes the checkout event and clears the
// cart. A repeated Idempotency-Key returns the first checkout id.
func (s *cartServiceImpl) Checkout(ctx context.Context, key cart.Key, req *models.CheckoutRequest, idempotencyKey string) (*models.CheckoutResult, *ServiceError) {
	log := s.log(ctx).With(zap.String("cart", key.String()))

	if idempotencyKey != "" && s.idempotency != nil {
		prev, err := s.idempotency.GetIdempotency(ctx, idempotencyKey)
		if err != nil {
			log.Error("idempotency lookup failed", zap.Error(err))
			return nil, errRequestFailed
		}
		if prev != "" {
			return &models.CheckoutResult{CheckoutID: prev, Replayed: true}, nil
		}
	}

	c, svcErr := s.open(ctx, key)
	if svcErr != nil {
		return nil, svcErr
	}
	items := c.Items()
	if len(items) == 0 {
		return nil, errEmptyCart
	}

	if err := signing.VerifyTypedData(req.Address, req.Data, req.Sig); err != nil {
		s.recordRejection(ctx, key.StoreID)
		if errors.Is(err, signing.ErrInvalidAddress) {
			return nil, errInvalidAddress
		}
		log.Info("checkout signature rejected", zap.Error(err))
		return nil, errInvalidSig
	}

	msg, err := signing.DecodeTypedMessage(req.Data)
	if err != nil {
		return nil, errInvalidPayload
	}
	order, ok := msg.(signing.Order)
	if !ok || order.StoreID != key.StoreID {
		return nil, errInvalidPayload
	}

	canonical, err := json.Marshal(items)
	if err != nil {
		log.Error("failed to encode cart", zap.Error(err))
		return nil, errRequestFailed
	}
	if !signing.DigestMatches(string(canonical), order.CartDigest) {
		return nil, errDigestMismatch
	}
	subtotal := c.Subtotal()
	if signed, err := decimal.NewFromString(order.Subtotal); err != nil || !signed.Equal(subtotal) {
		return nil, errInvalidPayload
	}

	evt := models.CheckoutEvent{
		Event:        models.CheckoutRequestedEvent,
		CheckoutID:   uuid.NewString(),
		StoreID:      key.StoreID,
		ShopperID:    key.ShopperID,
		BuyerAddress: signing.NormalizeAddress(req.Address),
		Items:        items,
		Subtotal:     subtotal,
		CartDigest:   order.CartDigest,
		Timestamp:    s.now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, s.topicArn, models.CheckoutRequestedEvent, evt); err != nil {
		log.Error("failed to publish checkout event", zap.Error(err))
		return nil, errRequestFailed
	}
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricCartCheckouts, map[string]string{"StoreID": key.StoreID})
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.SetIdempotency(ctx, idempotencyKey, evt.CheckoutID, s.idemTTL); err != nil {
			log.Warn("failed to record idempotency key", zap.Error(err))
		}
	}
	if err := c.Clear(ctx); err != nil {
		log.Warn("failed to clear cart after checkout", zap.String("checkout_id", evt.CheckoutID), zap.Error(err))
	}

	log.Info("checkout requested", zap.String("checkout_id", evt.CheckoutID), zap.String("subtotal", subtotal.String()))
	return &models.CheckoutResult{CheckoutID: evt.CheckoutID, Subtotal: subtotal}, nil
}

func (s *cartServiceImpl) recordRejection(ctx context.Context, storeID string) {
	if s.metrics != nil {
		_ = s.metrics.RecordCount(ctx, awspkg.MetricSignatureRejected, map[string]string{"StoreID": storeID, "Flow": "checkout"})
	}
}

func (s *cartServiceImpl) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}
