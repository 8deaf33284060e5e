package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/response"
)

type documentService interface {
	Matrix(ctx context.Context, actor models.Actor, enrollmentID string) (*models.DocumentMatrix, error)
	Queue(ctx context.Context, actor models.Actor, filter models.DocumentFilter) (*models.DocumentQueue, error)
	Upload(ctx context.Context, actor models.Actor, enrollmentID, requirementID string, file service.UploadFile) (*models.SubmittedDocument, error)
	Verify(ctx context.Context, actor models.Actor, documentID string) (*models.SubmittedDocument, error)
	Reject(ctx context.Context, actor models.Actor, documentID, observation string) (*models.SubmittedDocument, error)
	Delete(ctx context.Context, actor models.Actor, documentID string) error
	DownloadURL(ctx context.Context, actor models.Actor, documentID string) (*models.DocumentDownload, error)
	Download(ctx context.Context, documentID, token string) (*service.DocumentContent, error)
}

// DocumentRejectRequest carries the observation shown to the requester.
type DocumentRejectRequest struct {
	Observation string `json:"observation"`
}

// DocumentHandler manages submitted document endpoints.
type DocumentHandler struct {
	documents documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents documentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Queue godoc
// @Summary Documents awaiting staff review
// @Tags Documents
// @Produce json
// @Param status query string false "PENDING (default), VERIFIED or REJECTED; empty lists all"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) Queue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.DocumentFilter{
		Status:   models.DocumentStatus(strings.ToUpper(strings.TrimSpace(c.DefaultQuery("status", string(models.DocumentStatusPending))))),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "limit", models.DefaultPageSize),
	}
	queue, err := h.documents.Queue(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queue.Items, &queue.Pagination, map[string]interface{}{
		"status": filter.Status,
		"counts": queue.Counts,
	})
}

// Matrix godoc
// @Summary Required vs submitted documents of an enrollment
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents [get]
func (h *DocumentHandler) Matrix(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	matrix, err := h.documents.Matrix(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}

// Upload godoc
// @Summary Upload or replace the document for a requirement
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param requirementId path string true "Requirement ID"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/documents/{requirementId} [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	document, err := h.documents.Upload(c.Request.Context(), actor, c.Param("id"), c.Param("requirementId"), service.UploadFile{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, document)
}

// Verify godoc
// @Summary Verify a pending document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	document, err := h.documents.Verify(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, document, nil)
}

// Reject godoc
// @Summary Reject a pending document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body DocumentRejectRequest true "Observation"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req DocumentRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	document, err := h.documents.Reject(c.Request.Context(), actor, c.Param("id"), req.Observation)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, document, nil)
}

// Delete godoc
// @Summary Remove a submitted document
// @Tags Documents
// @Param id path string true "Document ID"
// @Success 204
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.documents.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DownloadURL godoc
// @Summary Signed download link for a document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/download-url [get]
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.documents.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Download godoc
// @Summary Download a document with a signed token
// @Tags Documents
// @Produce octet-stream
// @Param id path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/{id}/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	content, err := h.documents.Download(c.Request.Context(), c.Param("id"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer content.Body.Close() //nolint:errcheck
	contentType := content.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", content.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, content.Size, contentType, content.Body, nil)
}
