package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/auth"
)

const (
	UserIDKey = "userID"
	ClaimsKey = "claims"
)

// TokenAuthenticator resolves a session token to its claims.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*auth.Claims, error)
}

// AuthMiddleware validates the session cookie or bearer token and stores
// the caller id under UserIDKey.
func AuthMiddleware(authenticator TokenAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - No Token Provided"})
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Invalid Token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
