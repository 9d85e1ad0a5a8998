package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/storefront-platform/backend/services/common/errors"
)

// RejectUnknownMethods makes a known path hit with the wrong verb answer
// 500 {"error": "unauthorized method"}.
func RejectUnknownMethods(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		apperrors.Respond(c, apperrors.ErrUnauthorizedMethod)
	})
}
