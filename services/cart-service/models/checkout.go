package models

import (
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/storefront-platform/backend/services/cart-service/cart"
)

const CheckoutRequestedEvent = "checkout.requested"

// CheckoutRequest is the wallet-signed Order typed data.
type CheckoutRequest struct {
	Address string             `json:"address" binding:"required"`
	Data    apitypes.TypedData `json:"data"`
	Sig     string             `json:"sig" binding:"required"`
}

type CheckoutEvent struct {
	Event        string          `json:"event"`
	CheckoutID   string          `json:"checkoutId"`
	StoreID      string          `json:"storeId"`
	ShopperID    string          `json:"shopperId"`
	BuyerAddress string          `json:"buyerAddress"`
	Items        []cart.Item     `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CartDigest   string          `json:"cartDigest"`
	Timestamp    time.Time       `json:"timestamp"`
}

type CheckoutResult struct {
	CheckoutID string          `json:"checkoutId"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Replayed   bool            `json:"replayed,omitempty"`
}
