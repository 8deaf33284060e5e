package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/export"
)

var rosterHeaders = []string{"#", "Code", "Student", "Identification", "Type", "Approved at"}

type enrollmentReportSource interface {
	Roster(ctx context.Context, sectionID string) ([]models.RosterEntry, error)
	CountByStatus(ctx context.Context, periodID string) ([]models.EnrollmentStatusCount, error)
}

type sectionDetailReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ReportFile is a rendered report ready to be sent as an attachment.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders read-only views derived from committed enrollment state.
type ReportService struct {
	enrollments enrollmentReportSource
	sections    sectionDetailReader
	periods     periodReader
	renderers   map[export.Format]datasetRenderer
	logger      *zap.Logger
}

// NewReportService constructs ReportService with CSV and PDF renderers.
func NewReportService(enrollments enrollmentReportSource, sections sectionDetailReader, periods periodReader, csv, pdf datasetRenderer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		enrollments: enrollments,
		sections:    sections,
		periods:     periods,
		renderers:   map[export.Format]datasetRenderer{export.FormatCSV: csv, export.FormatPDF: pdf},
		logger:      logger,
	}
}

// SectionRoster renders the approved students of a section.
func (s *ReportService) SectionRoster(ctx context.Context, actor models.Actor, sectionID string, format export.Format) (*ReportFile, error) {
	if err := Authorize(actor, OpViewRoster, nil); err != nil {
		return nil, err
	}
	if format == "" {
		format = export.FormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok || renderer == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	section, err := s.sections.FindDetailByID(ctx, sectionID)
	if err != nil {
		return nil, notFoundOr(err, "section not found", "failed to load section")
	}
	roster, err := s.enrollments.Roster(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section roster")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s %s - %s", section.GradeLevelName, section.Label, section.PeriodName),
		Headers: rosterHeaders,
		Rows:    make([]map[string]string, 0, len(roster)),
	}
	for i, entry := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"#":              fmt.Sprintf("%d", i+1),
			"Code":           entry.Code,
			"Student":        entry.StudentName,
			"Identification": entry.StudentIdentification,
			"Type":           entry.Type,
			"Approved at":    entry.ResolvedAt.Format("2006-01-02"),
		})
	}
	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	filename := fmt.Sprintf("roster_%s_%s.%s", slug(section.GradeLevelName), slug(section.Label), format)
	return &ReportFile{Filename: filename, ContentType: format.ContentType(), Data: data}, nil
}

// PeriodStatusCounts returns the number of enrollments per status in a period, including
// statuses with no enrollment.
func (s *ReportService) PeriodStatusCounts(ctx context.Context, actor models.Actor, periodID string) ([]models.EnrollmentStatusCount, error) {
	if err := Authorize(actor, OpViewReports, nil); err != nil {
		return nil, err
	}
	if _, err := s.periods.FindByID(ctx, periodID); err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	counts, err := s.enrollments.CountByStatus(ctx, periodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	byStatus := make(map[models.EnrollmentStatus]int, len(counts))
	for _, count := range counts {
		byStatus[count.Status] = count.Total
	}
	statuses := []models.EnrollmentStatus{
		models.EnrollmentStatusPending,
		models.EnrollmentStatusUnderReview,
		models.EnrollmentStatusApproved,
		models.EnrollmentStatusRejected,
		models.EnrollmentStatusAnnulled,
	}
	result := make([]models.EnrollmentStatusCount, 0, len(statuses))
	for _, status := range statuses {
		result = append(result, models.EnrollmentStatusCount{Status: status, Total: byStatus[status]})
	}
	return result, nil
}

func slug(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(value), "-")
}
