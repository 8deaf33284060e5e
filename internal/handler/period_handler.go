package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type periodService interface {
	List(ctx context.Context) ([]models.PeriodWithWindow, error)
	Get(ctx context.Context, id string) (*models.PeriodWithWindow, error)
	Current(ctx context.Context) (*models.PeriodWithWindow, error)
	Create(ctx context.Context, actor models.Actor, req service.PeriodRequest) (*models.Period, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.PeriodRequest) (*models.Period, error)
	SetCurrent(ctx context.Context, actor models.Actor, id string) (*models.Period, error)
}

// PeriodHandler exposes academic period endpoints.
type PeriodHandler struct {
	periods periodService
}

// NewPeriodHandler constructs PeriodHandler.
func NewPeriodHandler(periods periodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// List godoc
// @Summary List periods with their enrollment windows
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	periods, err := h.periods.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Current godoc
// @Summary Current period
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /periods/current [get]
func (h *PeriodHandler) Current(c *gin.Context) {
	period, err := h.periods.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Get godoc
// @Summary Get period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	period, err := h.periods.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Create godoc
// @Summary Create period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 201 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	period, err := h.periods.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body service.PeriodRequest true "Period payload"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [put]
func (h *PeriodHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.PeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	period, err := h.periods.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Activate godoc
// @Summary Make a period the current one
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	period, err := h.periods.SetCurrent(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}
