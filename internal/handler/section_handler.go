package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type sectionService interface {
	Capacity(ctx context.Context, actor models.Actor, id string) (*models.SectionCapacity, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionAvailability, error)
	Available(ctx context.Context, periodID string) ([]models.SectionAvailability, error)
	Create(ctx context.Context, actor models.Actor, req service.CreateSectionRequest) (*models.SectionDetail, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.UpdateSectionRequest) (*models.SectionDetail, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
}

// SectionHandler exposes sections and their seat accounting.
type SectionHandler struct {
	sections sectionService
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(sections sectionService) *SectionHandler {
	return &SectionHandler{sections: sections}
}

// List godoc
// @Summary List sections with seats
// @Tags Sections
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param gradeLevelId query string false "Filter by grade level"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	sections, err := h.sections.List(c.Request.Context(), models.SectionFilter{
		PeriodID:     c.Query("periodId"),
		GradeLevelID: c.Query("gradeLevelId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Available godoc
// @Summary Sections with free seats
// @Tags Sections
// @Produce json
// @Param periodId query string false "Period, defaults to the current one"
// @Success 200 {object} response.Envelope
// @Router /sections/available [get]
func (h *SectionHandler) Available(c *gin.Context) {
	sections, err := h.sections.Available(c.Request.Context(), c.Query("periodId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Capacity godoc
// @Summary Seat accounting of a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/capacity [get]
func (h *SectionHandler) Capacity(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	seats, err := h.sections.Capacity(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, seats, nil)
}

// Create godoc
// @Summary Create section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body service.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	section, err := h.sections.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// Update godoc
// @Summary Update section label, capacity or shift
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body service.UpdateSectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *SectionHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	section, err := h.sections.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// Delete godoc
// @Summary Deactivate a section without open enrollments
// @Tags Sections
// @Param id path string true "Section ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /sections/{id} [delete]
func (h *SectionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.sections.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
