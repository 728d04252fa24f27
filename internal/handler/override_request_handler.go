package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gme-scheduler/core/internal/dto"
	"github.com/gme-scheduler/core/internal/models"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/response"
)

type overrideRequestService interface {
	RequestChange(ctx context.Context, req dto.CreateOverrideRequest, actorID string) (*models.OverrideRequest, error)
	List(ctx context.Context, query dto.OverrideQuery, actor *models.OverrideClaims) ([]models.OverrideRequest, error)
	Get(ctx context.Context, id string, actor *models.OverrideClaims) (*models.OverrideRequest, error)
	Review(ctx context.Context, id string, req dto.ReviewOverrideRequest, reviewerID string) (*models.OverrideRequest, error)
}

// OverrideRequestHandler exposes REST endpoints for the manual-override
// request/review workflow.
type OverrideRequestHandler struct {
	service overrideRequestService
}

// NewOverrideRequestHandler constructs the handler.
func NewOverrideRequestHandler(service overrideRequestService) *OverrideRequestHandler {
	return &OverrideRequestHandler{service: service}
}

// Create godoc
// @Summary Submit a manual override request
// @Tags Overrides
// @Accept json
// @Produce json
// @Param payload body dto.CreateOverrideRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Router /overrides [post]
func (h *OverrideRequestHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "override service not configured"))
		return
	}
	var req dto.CreateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid override payload"))
		return
	}
	claims := overrideClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	override, err := h.service.RequestChange(c.Request.Context(), req, claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, override, nil)
}

// List godoc
// @Summary List override requests
// @Tags Overrides
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param entity query string false "Entity name"
// @Param type query string false "Override type"
// @Success 200 {object} response.Envelope
// @Router /overrides [get]
func (h *OverrideRequestHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "override service not configured"))
		return
	}
	claims := overrideClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.OverrideQuery{
		Entity: strings.TrimSpace(c.Query("entity")),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.OverrideType(strings.ToUpper(rawType))
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.OverrideStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.OverrideStatus(part))
		}
		query.Status = statuses
	}
	overrides, err := h.service.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overrides, nil)
}

// Get godoc
// @Summary Get override request detail
// @Tags Overrides
// @Produce json
// @Param id path string true "Override ID"
// @Success 200 {object} response.Envelope
// @Router /overrides/{id} [get]
func (h *OverrideRequestHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "override service not configured"))
		return
	}
	claims := overrideClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	override, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}

// Review godoc
// @Summary Review an override request
// @Tags Overrides
// @Accept json
// @Produce json
// @Param id path string true "Override ID"
// @Param payload body dto.ReviewOverrideRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /overrides/{id}/review [post]
func (h *OverrideRequestHandler) Review(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "override service not configured"))
		return
	}
	claims := overrideClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	override, err := h.service.Review(c.Request.Context(), c.Param("id"), req, claims.ActorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}
