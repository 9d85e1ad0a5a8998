package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
	"github.com/storefront-platform/backend/pkg/signing"
	"github.com/storefront-platform/backend/services/order-service/models"
	"github.com/storefront-platform/backend/services/order-service/repository"
)

// Poller is satisfied by *awspkg.SQSConsumer.
type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// CheckoutConsumer turns checkout events into pending orders. Redelivered
// events are recognized by checkout id and create nothing.
type CheckoutConsumer struct {
	stores  repository.StoreRepository
	orders  repository.OrderRepository
	metrics awspkg.Metrics
	logger  *zap.Logger
}

func NewCheckoutConsumer(stores repository.StoreRepository, orders repository.OrderRepository, metrics awspkg.Metrics, logger *zap.Logger) *CheckoutConsumer {
	return &CheckoutConsumer{
		stores:  stores,
		orders:  orders,
		metrics: metrics,
		logger:  logger,
	}
}

// Start blocks polling until ctx is cancelled.
func (c *CheckoutConsumer) Start(ctx context.Context, poller Poller) {
	c.logger.Info("starting checkout consumer")
	if err := poller.StartPolling(ctx, c.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("checkout polling stopped", zap.Error(err))
	}
}

// HandleMessage processes one checkout event. Malformed events are logged
// and acknowledged; only storage failures are returned for redelivery.
func (c *CheckoutConsumer) HandleMessage(ctx context.Context, body string) error {
	var evt models.CheckoutEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		c.logger.Warn("dropping malformed checkout event", zap.Error(err))
		return nil
	}
	log := c.logger.With(zap.String("checkout_id", evt.CheckoutID), zap.String("store_id", evt.StoreID))

	order, err := buildOrder(evt)
	if err != nil {
		log.Warn("dropping invalid checkout event", zap.Error(err))
		return nil
	}

	if _, err := c.stores.FindByID(ctx, order.StoreID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn("dropping checkout for unknown store")
			return nil
		}
		return fmt.Errorf("store lookup: %w", err)
	}

	created, err := c.orders.CreateFromCheckout(ctx, order)
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return err
	}
	if !created {
		log.Info("order already exists for checkout", zap.String("order_id", order.ID.String()))
		return nil
	}

	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int("items", len(order.OrderItems)),
		zap.String("subtotal", order.Subtotal.String()),
	)
	if c.metrics != nil {
		_ = c.metrics.RecordCount(ctx, awspkg.MetricOrdersCreated, map[string]string{"StoreID": order.StoreID.String()})
	}
	return nil
}

func buildOrder(evt models.CheckoutEvent) (*models.Order, error) {
	if evt.Event != "" && evt.Event != models.CheckoutRequestedEvent {
		return nil, fmt.Errorf("unexpected event %q", evt.Event)
	}
	checkoutID, err := uuid.Parse(evt.CheckoutID)
	if err != nil {
		return nil, fmt.Errorf("checkout id: %w", err)
	}
	storeID, err := uuid.Parse(evt.StoreID)
	if err != nil {
		return nil, fmt.Errorf("store id: %w", err)
	}
	if !signing.IsValidAddress(evt.BuyerAddress) {
		return nil, fmt.Errorf("buyer address %q", evt.BuyerAddress)
	}
	if len(evt.Items) == 0 {
		return nil, errors.New("no items")
	}

	items := make([]models.OrderItem, 0, len(evt.Items))
	subtotal := decimal.Zero
	for _, it := range evt.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.Price.IsNegative() {
			return nil, fmt.Errorf("invalid item %q", it.ID)
		}
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Variants:  it.Variants,
		})
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if !subtotal.Equal(evt.Subtotal) {
		return nil, fmt.Errorf("subtotal %s does not match items %s", evt.Subtotal, subtotal)
	}

	return &models.Order{
		CheckoutID:   checkoutID,
		StoreID:      storeID,
		BuyerAddress: signing.NormalizeAddress(evt.BuyerAddress),
		Subtotal:     subtotal,
		CartDigest:   evt.CartDigest,
		Status:       models.StatusPending,
		OrderItems:   items,
	}, nil
}
