package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/export"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type reportService interface {
	SectionRoster(ctx context.Context, actor models.Actor, sectionID string, format export.Format) (*service.ReportFile, error)
	PeriodStatusCounts(ctx context.Context, actor models.Actor, periodID string) ([]models.EnrollmentStatusCount, error)
}

// ReportHandler serves rosters and enrollment statistics.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Roster godoc
// @Summary Download the approved roster of a section
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Section ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /sections/{id}/roster [get]
func (h *ReportHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(c.Query("format")))
	file, err := h.reports.SectionRoster(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// EnrollmentCounts godoc
// @Summary Enrollments per status in a period
// @Tags Reports
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/enrollment-counts [get]
func (h *ReportHandler) EnrollmentCounts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	counts, err := h.reports.PeriodStatusCounts(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
