// admin_only.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-checkout-service/internal/service"
)

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != service.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(CtxRole) == service.RoleAdmin
}
