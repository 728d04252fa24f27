package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/service"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/response"
)

// ContextOverrideKey is the gin context key storing validated override claims.
const ContextOverrideKey = "overrideClaims"

// OverrideAuth protects break-glass routes (manual overrides, resilience
// gate bypass) by requiring a valid, correctly-scoped override token.
func OverrideAuth(authService *service.OverrideAuthService, want models.OverrideScope) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if err := authService.AuthorizeScope(claims, want); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextOverrideKey, claims)
		c.Next()
	}
}
