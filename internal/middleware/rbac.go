package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/response"
)

// RBAC enforces role-based access control for routes protected by
// OverrideAuth, restricting the action to a fixed set of roles (program
// directors, associate program directors, chiefs).
func RBAC(allowed ...models.Role) gin.HandlerFunc {
	allowedRoles := make(map[models.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedRoles[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextOverrideKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.OverrideClaims)

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
