package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gme-scheduler/core/internal/models"
	"github.com/gme-scheduler/core/internal/service"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/response"
)

// OverrideAuthHandler wires HTTP endpoints to the override-token service.
type OverrideAuthHandler struct {
	service *service.OverrideAuthService
}

// NewOverrideAuthHandler creates a new handler.
func NewOverrideAuthHandler(svc *service.OverrideAuthService) *OverrideAuthHandler {
	return &OverrideAuthHandler{service: svc}
}

// overrideAuthRequest is the passphrase-exchange payload.
type overrideAuthRequest struct {
	ActorID    string               `json:"actorId" binding:"required"`
	Role       models.Role          `json:"role" binding:"required"`
	Scope      models.OverrideScope `json:"scope" binding:"required"`
	Passphrase string               `json:"passphrase" binding:"required"`
}

// Authenticate godoc
// @Summary Exchange the shared override passphrase for a scoped token
// @Description Used before bypassing the resilience gate or writing a manual assignment override
// @Tags Override
// @Accept json
// @Produce json
// @Param payload body overrideAuthRequest true "Override passphrase exchange"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /override/authenticate [post]
func (h *OverrideAuthHandler) Authenticate(c *gin.Context) {
	var req overrideAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid override authentication payload"))
		return
	}

	token, err := h.service.Authenticate(c.Request.Context(), req.ActorID, req.Role, req.Scope, req.Passphrase)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"token": token}, nil)
}
