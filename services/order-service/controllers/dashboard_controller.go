package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/storefront-platform/backend/pkg/signing"
	apperrors "github.com/storefront-platform/backend/services/common/errors"
	"github.com/storefront-platform/backend/services/order-service/middleware"
	"github.com/storefront-platform/backend/services/order-service/services"
)

const maxPageSize = 100

type DashboardController struct {
	service services.DashboardService
}

func NewDashboardController(service services.DashboardService) *DashboardController {
	return &DashboardController{service: service}
}

func respond(ctx *gin.Context, svcErr *services.ServiceError) {
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
}

func signedMessage(ctx *gin.Context) (signing.Message, bool) {
	msg, ok := middleware.SignedMessage(ctx)
	if !ok {
		_ = ctx.Error(apperrors.ErrRequestFailed)
		return nil, false
	}
	return msg, true
}

// CancelOrder handles POST /stores/:storeID/orders/:orderID/cancel
func (dc *DashboardController) CancelOrder(ctx *gin.Context) {
	msg, ok := signedMessage(ctx)
	if !ok {
		return
	}
	res, svcErr := dc.service.CancelOrder(ctx.Request.Context(), ctx.Param("storeID"), ctx.Param("orderID"), msg, middleware.Signer(ctx))
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// FulfillOrder handles POST /stores/:storeID/orders/:orderID/fulfill
func (dc *DashboardController) FulfillOrder(ctx *gin.Context) {
	msg, ok := signedMessage(ctx)
	if !ok {
		return
	}
	res, svcErr := dc.service.FulfillOrder(ctx.Request.Context(), ctx.Param("storeID"), ctx.Param("orderID"), msg, middleware.Signer(ctx))
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func (dc *DashboardController) UpdateStore(ctx *gin.Context) {
	msg, ok := signedMessage(ctx)
	if !ok {
		return
	}
	store, svcErr := dc.service.UpdateStore(ctx.Request.Context(), ctx.Param("storeID"), msg)
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, store)
}

func (dc *DashboardController) UpdateAccount(ctx *gin.Context) {
	msg, ok := signedMessage(ctx)
	if !ok {
		return
	}
	user, svcErr := dc.service.UpdateAccount(ctx.Request.Context(), ctx.Param("address"), msg)
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, user)
}

// CreateStore handles POST /stores with a wallet-signed Store message.
func (dc *DashboardController) CreateStore(ctx *gin.Context) {
	var req signing.WalletPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	store, svcErr := dc.service.CreateStore(ctx.Request.Context(), &req)
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusCreated, store)
}

// RegisterKey handles POST /users/:address/keys with wallet-signed
// GenerateSigningKey typed data.
func (dc *DashboardController) RegisterKey(ctx *gin.Context) {
	var req signing.WalletPayload
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, svcErr := dc.service.RegisterKey(ctx.Request.Context(), ctx.Param("address"), &req)
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	ctx.JSON(status, res)
}

// ListOrders returns a store's orders, newest first.
func (dc *DashboardController) ListOrders(ctx *gin.Context) {
	page, limit := parsePaginationParams(ctx)
	res, svcErr := dc.service.ListOrders(ctx.Request.Context(), ctx.Param("storeID"), page, limit)
	if svcErr != nil {
		respond(ctx, svcErr)
		return
	}
	ctx.JSON(http.StatusOK, res)
}

func parsePaginationParams(ctx *gin.Context) (int, int) {
	page, err := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}
