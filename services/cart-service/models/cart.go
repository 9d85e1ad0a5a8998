package models

import (
	"github.com/shopspring/decimal"

	"github.com/storefront-platform/backend/services/cart-service/cart"
)

type AddItemRequest struct {
	ProductID string            `json:"productId" binding:"required"`
	Quantity  int               `json:"quantity" binding:"required,min=1"`
	Variants  map[string]string `json:"variants"`
}

type UpdateItemRequest struct {
	Quantity *int              `json:"quantity" binding:"omitempty,min=0"`
	Variants map[string]string `json:"variants"`
}

// CartView is the cart as returned to the storefront. CartDigest is the
// value the buyer's Order message must commit to at checkout.
type CartView struct {
	StoreID    string          `json:"storeId"`
	Items      []cart.Item     `json:"items"`
	TotalItems int             `json:"totalItems"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CartDigest string          `json:"cartDigest"`
}
