package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/export"
)

type stubReportSource struct {
	roster []models.RosterEntry
	counts []models.EnrollmentStatusCount
}

func (s stubReportSource) Roster(ctx context.Context, sectionID string) ([]models.RosterEntry, error) {
	return s.roster, nil
}

func (s stubReportSource) CountByStatus(ctx context.Context, periodID string) ([]models.EnrollmentStatusCount, error) {
	return s.counts, nil
}

type stubSectionDetails map[string]models.SectionDetail

func (s stubSectionDetails) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	detail, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &detail, nil
}

func newReportFixture() *ReportService {
	source := stubReportSource{
		roster: []models.RosterEntry{
			{Code: "MAT-AAAA1111", StudentName: "Ana Torres", StudentIdentification: "0102030405", Type: "NEW", ResolvedAt: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)},
			{Code: "MAT-BBBB2222", StudentName: "Luis Vera", StudentIdentification: "0911223344", Type: "RENEWAL", ResolvedAt: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)},
		},
		counts: []models.EnrollmentStatusCount{
			{Status: models.EnrollmentStatusApproved, Total: 2},
			{Status: models.EnrollmentStatusPending, Total: 5},
		},
	}
	sections := stubSectionDetails{
		"sec-a": {Section: models.Section{ID: "sec-a", Label: "A"}, GradeLevelName: "Octavo EGB", PeriodName: "2026-2027"},
	}
	periods := fakePeriods{"per-1": {ID: "per-1"}}
	return NewReportService(source, sections, periods, export.NewCSVExporter(), export.NewPDFExporter(), zap.NewNop())
}

func TestReportServiceSectionRosterCSV(t *testing.T) {
	svc := newReportFixture()

	file, err := svc.SectionRoster(context.Background(), teacher, "sec-a", "")
	require.NoError(t, err)

	assert.Equal(t, "roster_octavo-egb_a.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#,Code,Student,Identification,Type,Approved at", lines[0])
	assert.Equal(t, "1,MAT-AAAA1111,Ana Torres,0102030405,NEW,2026-09-10", lines[1])
}

func TestReportServiceSectionRosterPDF(t *testing.T) {
	svc := newReportFixture()

	file, err := svc.SectionRoster(context.Background(), admin, "sec-a", export.FormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}

func TestReportServiceSectionRosterErrors(t *testing.T) {
	svc := newReportFixture()
	ctx := context.Background()

	_, err := svc.SectionRoster(ctx, representative, "sec-a", export.FormatCSV)
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	_, err = svc.SectionRoster(ctx, admin, "sec-a", "xlsx")
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(err))

	_, err = svc.SectionRoster(ctx, admin, "sec-z", export.FormatCSV)
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(err))
}

func TestReportServicePeriodStatusCounts(t *testing.T) {
	svc := newReportFixture()

	counts, err := svc.PeriodStatusCounts(context.Background(), secretary, "per-1")
	require.NoError(t, err)

	assert.Equal(t, []models.EnrollmentStatusCount{
		{Status: models.EnrollmentStatusPending, Total: 5},
		{Status: models.EnrollmentStatusUnderReview, Total: 0},
		{Status: models.EnrollmentStatusApproved, Total: 2},
		{Status: models.EnrollmentStatusRejected, Total: 0},
		{Status: models.EnrollmentStatusAnnulled, Total: 0},
	}, counts)

	_, err = svc.PeriodStatusCounts(context.Background(), teacher, "per-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(err))

	_, err = svc.PeriodStatusCounts(context.Background(), admin, "per-9")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(err))
}
