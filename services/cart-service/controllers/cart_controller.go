package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-platform/backend/services/cart-service/cart"
	"github.com/storefront-platform/backend/services/cart-service/models"
	"github.com/storefront-platform/backend/services/cart-service/services"
	"github.com/storefront-platform/backend/services/common/auth"
)

const IdempotencyHeader = "Idempotency-Key"

type CartController struct {
	cartService services.CartService
}

func NewCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

func cartKey(ctx *gin.Context) (cart.Key, bool) {
	shopperID, ok := auth.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return cart.Key{}, false
	}
	return cart.Key{StoreID: ctx.Param("storeID"), ShopperID: shopperID}, true
}

func respond(ctx *gin.Context, view any, svcErr *services.ServiceError) {
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	ctx.JSON(http.StatusOK, view)
}

// GetCart handles GET /stores/:storeID/cart.
func (cc *CartController) GetCart(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	view, svcErr := cc.cartService.GetCart(ctx.Request.Context(), key)
	respond(ctx, view, svcErr)
}

// AddItem handles POST /stores/:storeID/cart/items.
func (cc *CartController) AddItem(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	var req models.AddItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	view, svcErr := cc.cartService.AddItem(ctx.Request.Context(), key, &req)
	respond(ctx, view, svcErr)
}

// UpdateItem handles PATCH /stores/:storeID/cart/items/:itemID.
func (cc *CartController) UpdateItem(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	var req models.UpdateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	view, svcErr := cc.cartService.UpdateItem(ctx.Request.Context(), key, ctx.Param("itemID"), &req)
	respond(ctx, view, svcErr)
}

// RemoveItem handles DELETE /stores/:storeID/cart/items/:itemID.
func (cc *CartController) RemoveItem(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	view, svcErr := cc.cartService.RemoveItem(ctx.Request.Context(), key, ctx.Param("itemID"))
	respond(ctx, view, svcErr)
}

// ClearCart handles DELETE /stores/:storeID/cart.
func (cc *CartController) ClearCart(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	view, svcErr := cc.cartService.Clear(ctx.Request.Context(), key)
	respond(ctx, view, svcErr)
}

// Checkout handles POST /stores/:storeID/cart/checkout.
func (cc *CartController) Checkout(ctx *gin.Context) {
	key, ok := cartKey(ctx)
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, svcErr := cc.cartService.Checkout(ctx.Request.Context(), key, &req, ctx.GetHeader(IdempotencyHeader))
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	status := http.StatusAccepted
	if res.Replayed {
		status = http.StatusOK
	}
	ctx.JSON(status, res)
}
