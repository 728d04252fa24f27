package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gme-scheduler/core/internal/dispatch"
	"github.com/gme-scheduler/core/internal/dto"
	"github.com/gme-scheduler/core/internal/solver"
	appErrors "github.com/gme-scheduler/core/pkg/errors"
	"github.com/gme-scheduler/core/pkg/response"
)

// GenerationHandler exposes the asynchronous generate/status/cancel
// surface spec.md §4.10's generate operation and §6's cancellation
// handle describe.
type GenerationHandler struct {
	dispatch *dispatch.Dispatcher
}

// NewGenerationHandler constructs the handler.
func NewGenerationHandler(d *dispatch.Dispatcher) *GenerationHandler {
	return &GenerationHandler{dispatch: d}
}

// Generate godoc
// @Summary Submit a schedule generation run
// @Description Accepts roster, rotation and absence data inline and dispatches generation asynchronously; poll /generate/{requestId} for the result.
// @Tags Generation
// @Accept json
// @Produce json
// @Param payload body dto.GenerateRequest true "Generation request"
// @Success 202 {object} response.Envelope
// @Router /generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid generate payload"))
		return
	}

	id, err := h.dispatch.Submit(req.ToGenerateInput())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to submit generation"))
		return
	}

	response.JSON(c, http.StatusAccepted, dto.GenerateAcceptedResponse{RequestID: id, Status: string(dispatch.StatusQueued)}, nil)
}

// Status godoc
// @Summary Poll a dispatched generation run
// @Tags Generation
// @Produce json
// @Param requestId path string true "Request id returned by POST /generate"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /generate/{requestId} [get]
func (h *GenerationHandler) Status(c *gin.Context) {
	rec, ok := h.dispatch.Status(c.Param("requestId"))
	if !ok {
		response.Error(c, appErrors.ErrNotFound)
		return
	}

	resp := dto.GenerateStatusResponse{RequestID: rec.ID, Status: string(rec.Status), Error: rec.Err}
	if rec.Status == dispatch.StatusSucceeded || rec.Status == dispatch.StatusFailed {
		report := rec.Report
		resp.Report = &report
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Cancel godoc
// @Summary Request cooperative cancellation of a dispatched run
// @Tags Generation
// @Produce json
// @Param requestId path string true "Request id returned by POST /generate"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /generate/{requestId}/cancel [post]
func (h *GenerationHandler) Cancel(c *gin.Context) {
	if !h.dispatch.Cancel(c.Param("requestId")) {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no running generation with that request id"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cancelled": true}, nil)
}

// ProgressHandler upgrades a connection to stream live solver progress
// over the hub a running generation publishes to.
type ProgressHandler struct {
	hub    *solver.ProgressHub
	logger *zap.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(hub *solver.ProgressHub, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{hub: hub, logger: logger}
}

// Stream godoc
// @Summary Stream live solver progress over a websocket
// @Tags Generation
// @Router /generate/progress/ws [get]
func (h *ProgressHandler) Stream(c *gin.Context) {
	if err := h.hub.Attach(c.Writer, c.Request); err != nil {
		h.logger.Warn("progress websocket attach failed", zap.Error(err))
	}
}
