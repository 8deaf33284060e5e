package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type requirementService interface {
	ListActive(ctx context.Context) ([]models.DocumentRequirement, error)
	Create(ctx context.Context, actor models.Actor, req service.RequirementRequest) (*models.DocumentRequirement, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.RequirementRequest) (*models.DocumentRequirement, error)
}

// RequirementHandler exposes the document requirement catalog.
type RequirementHandler struct {
	requirements requirementService
}

// NewRequirementHandler constructs RequirementHandler.
func NewRequirementHandler(requirements requirementService) *RequirementHandler {
	return &RequirementHandler{requirements: requirements}
}

// List godoc
// @Summary Active document requirements
// @Tags Requirements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *RequirementHandler) List(c *gin.Context) {
	requirements, err := h.requirements.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirements, nil)
}

// Create godoc
// @Summary Create document requirement
// @Tags Requirements
// @Accept json
// @Produce json
// @Param payload body service.RequirementRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Router /requirements [post]
func (h *RequirementHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	requirement, err := h.requirements.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, requirement)
}

// Update godoc
// @Summary Update document requirement
// @Tags Requirements
// @Accept json
// @Produce json
// @Param id path string true "Requirement ID"
// @Param payload body service.RequirementRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Router /requirements/{id} [put]
func (h *RequirementHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.RequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	requirement, err := h.requirements.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requirement, nil)
}
