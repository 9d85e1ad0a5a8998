package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CheckoutRequestedEvent = "checkout.requested"
	OrderCanceledEvent     = "order.canceled"
	OrderFulfilledEvent    = "order.fulfilled"
)

// CheckoutEvent is published by the cart service once a buyer's signed
// checkout has been accepted.
type CheckoutEvent struct {
	Event        string          `json:"event"`
	CheckoutID   string          `json:"checkoutId"`
	StoreID      string          `json:"storeId"`
	ShopperID    string          `json:"shopperId"`
	BuyerAddress string          `json:"buyerAddress"`
	Items        []CheckoutItem  `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CartDigest   string          `json:"cartDigest"`
	Timestamp    time.Time       `json:"timestamp"`
}

type CheckoutItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Variants  Variants        `json:"variants,omitempty"`
}

// OrderStatusEvent is published after a dashboard status change.
type OrderStatusEvent struct {
	Event     string    `json:"event"`
	OrderID   string    `json:"orderId"`
	StoreID   string    `json:"storeId"`
	Status    string    `json:"status"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
}
