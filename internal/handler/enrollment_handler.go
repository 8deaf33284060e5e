package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error)
	Status(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentStatusSummary, error)
	Create(ctx context.Context, actor models.Actor, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error)
	BeginReview(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	Approve(ctx context.Context, actor models.Actor, id, note string) (*models.Enrollment, error)
	Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error)
	Annul(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error)
	Resubmit(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error)
	History(ctx context.Context, actor models.Actor, id string, desc bool) ([]models.EnrollmentHistoryEntry, error)
}

// TransitionRequest carries the optional note or reason of a status change.
type TransitionRequest struct {
	Note   string `json:"note"`
	Reason string `json:"reason"`
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param periodId query string false "Filter by period"
// @Param sectionId query string false "Filter by section"
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param q query string false "Search by code or student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		PeriodID:  c.Query("periodId"),
		SectionID: c.Query("sectionId"),
		StudentID: c.Query("studentId"),
		Status:    models.EnrollmentStatus(strings.ToUpper(c.Query("status"))),
		Search:    strings.TrimSpace(c.Query("q")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "limit", 20),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Status godoc
// @Summary Enrollment status summary
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [get]
func (h *EnrollmentHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.enrollments.Status(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Create godoc
// @Summary Submit enrollment request
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	enrollment, err := h.enrollments.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Update godoc
// @Summary Edit a pending or rejected enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	enrollment, err := h.enrollments.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// BeginReview godoc
// @Summary Start reviewing a pending enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/review [post]
func (h *EnrollmentHandler) BeginReview(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor models.Actor, id string, _ TransitionRequest) (*models.Enrollment, error) {
		return h.enrollments.BeginReview(ctx, actor, id)
	})
}

// Approve godoc
// @Summary Approve an enrollment under review
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body TransitionRequest false "Optional note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor models.Actor, id string, req TransitionRequest) (*models.Enrollment, error) {
		return h.enrollments.Approve(ctx, actor, id, req.Note)
	})
}

// Reject godoc
// @Summary Reject an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body TransitionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor models.Actor, id string, req TransitionRequest) (*models.Enrollment, error) {
		return h.enrollments.Reject(ctx, actor, id, req.Reason)
	})
}

// Annul godoc
// @Summary Annul an approved enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body TransitionRequest true "Annulment reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/annul [post]
func (h *EnrollmentHandler) Annul(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor models.Actor, id string, req TransitionRequest) (*models.Enrollment, error) {
		return h.enrollments.Annul(ctx, actor, id, req.Reason)
	})
}

// Resubmit godoc
// @Summary Send a rejected enrollment back for review
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/resubmit [post]
func (h *EnrollmentHandler) Resubmit(c *gin.Context) {
	h.transition(c, func(ctx context.Context, actor models.Actor, id string, _ TransitionRequest) (*models.Enrollment, error) {
		return h.enrollments.Resubmit(ctx, actor, id)
	})
}

// History godoc
// @Summary Enrollment status history
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param order query string false "asc (default) or desc"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/history [get]
func (h *EnrollmentHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	desc := strings.EqualFold(c.Query("order"), "desc")
	entries, err := h.enrollments.History(c.Request.Context(), actor, c.Param("id"), desc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

type transitionCall func(ctx context.Context, actor models.Actor, id string, req TransitionRequest) (*models.Enrollment, error)

// transition binds an optional JSON body; an empty body is a valid request.
func (h *EnrollmentHandler) transition(c *gin.Context, call transitionCall) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidPayload(c, err)
			return
		}
	}
	enrollment, err := call(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
