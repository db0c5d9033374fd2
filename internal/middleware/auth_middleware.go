// auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/logging"
	"storefront-checkout-service/internal/service"
)

// Claves que AuthMiddleware guarda en gin.Context.
const (
	CtxUserID   = "userID"
	CtxUserName = "userName"
	CtxRole     = "userRole"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.AuthUser, error)
}

// Middleware que valida el token y guarda la info del usuario en el contexto
func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		user, err := auth.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logging.From(c).Warn("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUserName, user.Name)
		c.Set(CtxRole, user.Role())
		c.Next()
	}
}
