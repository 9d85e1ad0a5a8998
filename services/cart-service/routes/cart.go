package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/storefront-platform/backend/services/cart-service/controllers"
	"github.com/storefront-platform/backend/services/common/auth"
)

func RegisterCartRoutes(r *gin.Engine, controller *controllers.CartController, tokens *auth.TokenValidator, signed ...gin.HandlerFunc) {
	api := r.Group("/stores/:storeID/cart")
	api.Use(auth.RequireUser(tokens))
	{
		api.GET("", controller.GetCart)
		api.DELETE("", controller.ClearCart)
		api.POST("/items", controller.AddItem)
		api.PATCH("/items/:itemID", controller.UpdateItem)
		api.DELETE("/items/:itemID", controller.RemoveItem)
		api.POST("/checkout", append(signed, controller.Checkout)...)
	}
}
