package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	apperrors "github.com/storefront-platform/backend/services/common/errors"
)

const UserContextKey = "user_id"

var ErrSecretNotConfigured = errors.New("JWT secret not configured")

// TokenValidator checks HS256 shopper session tokens.
type TokenValidator struct {
	secret []byte
}

func NewTokenValidator(secret string) *TokenValidator {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &TokenValidator{}
	}
	return &TokenValidator{secret: []byte(secret)}
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func (v *TokenValidator) ParseAndValidateToken(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v.secret == nil {
		return nil, ErrSecretNotConfigured
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// IssueToken signs an access token for userID. Used by tests and local
// tooling; production tokens come from the identity provider.
func (v *TokenValidator) IssueToken(userID string, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", ErrSecretNotConfigured
	}
	claims := jwt.MapClaims{
		"user_id": userID,
		"typ":     "access",
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// RequireUser authenticates the bearer token and stores the user_id claim
// in the gin context.
func RequireUser(v *TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenStr == "" {
			apperrors.Respond(c, apperrors.ErrUnauthorized)
			return
		}
		claims, err := v.ParseAndValidateToken(tokenStr, "access")
		if err != nil {
			apperrors.Respond(c, apperrors.Wrap(apperrors.ErrInvalidToken, err))
			return
		}
		userID, _ := claims["user_id"].(string)
		if userID == "" {
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}
		c.Set(UserContextKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user set by RequireUser.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(UserContextKey)
	return id, id != ""
}
