package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gme-scheduler/core/internal/middleware"
	"github.com/gme-scheduler/core/internal/models"
)

func overrideClaimsFromContext(c *gin.Context) *models.OverrideClaims {
	value, exists := c.Get(middleware.ContextOverrideKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.OverrideClaims)
	if !ok {
		return nil
	}
	return claims
}
