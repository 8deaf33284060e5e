package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/matricula-api/internal/middleware"
	"github.com/noah-isme/matricula-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Periods      *PeriodHandler
	GradeLevels  *GradeLevelHandler
	Sections     *SectionHandler
	Requirements *RequirementHandler
	Enrollments  *EnrollmentHandler
	Documents    *DocumentHandler
	Reports      *ReportHandler
}

// RegisterRoutes mounts the API on group. Every route requires a bearer token except the
// signed document download, whose token is the credential.
func RegisterRoutes(group *gin.RouterGroup, tokens middleware.TokenValidator, h Handlers) {
	group.GET("/documents/:id/download", h.Documents.Download)

	api := group.Group("", middleware.JWT(tokens))
	catalogAdmin := middleware.RequireRoles(models.RoleAdmin)

	periods := api.Group("/periods")
	periods.GET("", h.Periods.List)
	periods.GET("/current", h.Periods.Current)
	periods.GET("/:id", h.Periods.Get)
	periods.GET("/:id/enrollment-counts", h.Reports.EnrollmentCounts)
	periods.POST("", catalogAdmin, h.Periods.Create)
	periods.PUT("/:id", catalogAdmin, h.Periods.Update)
	periods.POST("/:id/activate", catalogAdmin, h.Periods.Activate)

	levels := api.Group("/grade-levels")
	levels.GET("", h.GradeLevels.List)
	levels.POST("", catalogAdmin, h.GradeLevels.Create)
	levels.PUT("/:id", catalogAdmin, h.GradeLevels.Update)

	sections := api.Group("/sections")
	sections.GET("", h.Sections.List)
	sections.GET("/available", h.Sections.Available)
	sections.GET("/:id/capacity", h.Sections.Capacity)
	sections.GET("/:id/roster", h.Reports.Roster)
	sections.POST("", catalogAdmin, h.Sections.Create)
	sections.PUT("/:id", catalogAdmin, h.Sections.Update)
	sections.DELETE("/:id", catalogAdmin, h.Sections.Delete)

	requirements := api.Group("/requirements")
	requirements.GET("", h.Requirements.List)
	requirements.POST("", catalogAdmin, h.Requirements.Create)
	requirements.PUT("/:id", catalogAdmin, h.Requirements.Update)

	enrollments := api.Group("/enrollments")
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PUT("/:id", h.Enrollments.Update)
	enrollments.GET("/:id/status", h.Enrollments.Status)
	enrollments.GET("/:id/history", h.Enrollments.History)
	enrollments.POST("/:id/review", h.Enrollments.BeginReview)
	enrollments.POST("/:id/approve", h.Enrollments.Approve)
	enrollments.POST("/:id/reject", h.Enrollments.Reject)
	enrollments.POST("/:id/annul", h.Enrollments.Annul)
	enrollments.POST("/:id/resubmit", h.Enrollments.Resubmit)
	enrollments.GET("/:id/documents", h.Documents.Matrix)
	enrollments.POST("/:id/documents/:requirementId", h.Documents.Upload)

	documents := api.Group("/documents")
	documents.GET("", h.Documents.Queue)
	documents.POST("/:id/verify", h.Documents.Verify)
	documents.POST("/:id/reject", h.Documents.Reject)
	documents.DELETE("/:id", h.Documents.Delete)
	documents.GET("/:id/download-url", h.Documents.DownloadURL)
}
