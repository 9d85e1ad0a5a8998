package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront-platform/backend/services/order-service/controllers"
	"github.com/storefront-platform/backend/services/order-service/middleware"
)

// Signer builds the signature middleware for a route's target.
type Signer func(target middleware.TargetFunc) gin.HandlerFunc

// RegisterOrderRoutes mounts the dashboard API. limit guards every write.
func RegisterOrderRoutes(r *gin.Engine, dc *controllers.DashboardController, signed Signer, limit gin.HandlerFunc) {
	stores := r.Group("/stores")
	stores.POST("", limit, dc.CreateStore)
	stores.GET("/:storeID/orders", dc.ListOrders)
	stores.POST("/:storeID/orders/:orderID/cancel", limit, signed(middleware.StoreTarget), dc.CancelOrder)
	stores.POST("/:storeID/orders/:orderID/fulfill", limit, signed(middleware.StoreTarget), dc.FulfillOrder)
	stores.PUT("/:storeID/settings", limit, signed(middleware.StoreTarget), dc.UpdateStore)

	users := r.Group("/users")
	users.PUT("/:address", limit, signed(middleware.AccountTarget), dc.UpdateAccount)
	users.POST("/:address/keys", limit, dc.RegisterKey)
}
