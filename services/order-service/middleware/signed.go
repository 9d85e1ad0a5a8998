package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	awspkg "github.com/storefront-platform/backend/pkg/aws"
	"github.com/storefront-platform/backend/pkg/signing"
	apperrors "github.com/storefront-platform/backend/services/common/errors"
	"github.com/storefront-platform/backend/services/common/logger"
	"github.com/storefront-platform/backend/services/order-service/verifier"
)

const (
	signedMessageKey = "signed_message"
	signerAddressKey = "signer_address"
)

// TargetFunc picks the resource a signed request acts on from the route.
type TargetFunc func(c *gin.Context) verifier.Target

func StoreTarget(c *gin.Context) verifier.Target {
	return verifier.Store(c.Param("storeID"))
}

func AccountTarget(c *gin.Context) verifier.Target {
	return verifier.Account(c.Param("address"))
}

// RequireSignature runs the verifier on the JSON body and, once authorized,
// exposes the decoded message to the handler. Rejections answer 400 with the
// gate's reason; lookup failures answer 500 "request failed".
func RequireSignature(v *verifier.Verifier, target TargetFunc, metrics awspkg.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifier.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidPayload, err))
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		t := target(c)
		res, err := v.Verify(ctx, t, req)
		if err != nil {
			logger.FromContext(ctx, log).Error("signature verification failed", zap.String("target", t.String()), zap.Error(err))
			_ = c.Error(apperrors.Wrap(apperrors.ErrRequestFailed, err))
			c.Abort()
			return
		}
		if !res.Authorized() {
			if metrics != nil {
				_ = metrics.RecordCount(ctx, awspkg.MetricSignatureRejected, map[string]string{"Reason": string(res.Reason), "Flow": "dashboard"})
			}
			_ = c.Error(apperrors.New(http.StatusBadRequest, string(res.Reason), nil))
			c.Abort()
			return
		}

		msg, err := signing.DecodeMessage(req.Payload)
		if err != nil {
			_ = c.Error(apperrors.Wrap(apperrors.ErrInvalidPayload, err))
			c.Abort()
			return
		}

		c.Set(signedMessageKey, msg)
		c.Set(signerAddressKey, signing.NormalizeAddress(req.Address))
		c.Next()
	}
}

// SignedMessage returns the message authorized by RequireSignature.
func SignedMessage(c *gin.Context) (signing.Message, bool) {
	v, ok := c.Get(signedMessageKey)
	if !ok {
		return nil, false
	}
	msg, ok := v.(signing.Message)
	return msg, ok
}

// Signer returns the lowercased address that signed the request.
func Signer(c *gin.Context) string {
	return c.GetString(signerAddressKey)
}
