package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type gradeLevelService interface {
	List(ctx context.Context) ([]models.GradeLevel, error)
	Create(ctx context.Context, actor models.Actor, req service.GradeLevelRequest) (*models.GradeLevel, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.GradeLevelRequest) (*models.GradeLevel, error)
}

// GradeLevelHandler exposes the grade level catalog.
type GradeLevelHandler struct {
	levels gradeLevelService
}

// NewGradeLevelHandler constructs GradeLevelHandler.
func NewGradeLevelHandler(levels gradeLevelService) *GradeLevelHandler {
	return &GradeLevelHandler{levels: levels}
}

// List godoc
// @Summary List grade levels
// @Tags GradeLevels
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grade-levels [get]
func (h *GradeLevelHandler) List(c *gin.Context) {
	levels, err := h.levels.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, nil)
}

// Create godoc
// @Summary Create grade level
// @Tags GradeLevels
// @Accept json
// @Produce json
// @Param payload body service.GradeLevelRequest true "Grade level payload"
// @Success 201 {object} response.Envelope
// @Router /grade-levels [post]
func (h *GradeLevelHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.GradeLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	level, err := h.levels.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

// Update godoc
// @Summary Update grade level
// @Tags GradeLevels
// @Accept json
// @Produce json
// @Param id path string true "Grade level ID"
// @Param payload body service.GradeLevelRequest true "Grade level payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grade-levels/{id} [put]
func (h *GradeLevelHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.GradeLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	level, err := h.levels.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}
