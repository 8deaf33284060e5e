package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/middleware"
	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/service"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/export"
)

type stubEnrollmentService struct {
	enrollment *models.Enrollment
	err        error
	lastActor  models.Actor
	lastReason string
	lastFilter models.EnrollmentFilter
	lastDesc   bool
}

func (s *stubEnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	s.lastActor, s.lastFilter = actor, filter
	return []models.EnrollmentDetail{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, s.err
}

func (s *stubEnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.EnrollmentDetail{Enrollment: *s.enrollment}, nil
}

func (s *stubEnrollmentService) Status(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentStatusSummary, error) {
	summary := s.enrollment.StatusSummary(time.Now())
	return &summary, s.err
}

func (s *stubEnrollmentService) Create(ctx context.Context, actor models.Actor, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	s.lastActor = actor
	if s.err != nil {
		return nil, s.err
	}
	return &models.EnrollmentDetail{Enrollment: *s.enrollment}, nil
}

func (s *stubEnrollmentService) Update(ctx context.Context, actor models.Actor, id string, req service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: *s.enrollment}, s.err
}

func (s *stubEnrollmentService) result(actor models.Actor, reason string) (*models.Enrollment, error) {
	s.lastActor, s.lastReason = actor, reason
	if s.err != nil {
		return nil, s.err
	}
	return s.enrollment, nil
}

func (s *stubEnrollmentService) BeginReview(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	return s.result(actor, "")
}

func (s *stubEnrollmentService) Approve(ctx context.Context, actor models.Actor, id, note string) (*models.Enrollment, error) {
	return s.result(actor, note)
}

func (s *stubEnrollmentService) Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error) {
	return s.result(actor, reason)
}

func (s *stubEnrollmentService) Annul(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error) {
	return s.result(actor, reason)
}

func (s *stubEnrollmentService) Resubmit(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	return s.result(actor, "")
}

func (s *stubEnrollmentService) History(ctx context.Context, actor models.Actor, id string, desc bool) ([]models.EnrollmentHistoryEntry, error) {
	s.lastDesc = desc
	return []models.EnrollmentHistoryEntry{}, s.err
}

type stubDocumentService struct {
	uploaded    []byte
	filename    string
	content     string
	err         error
	queueFilter models.DocumentFilter
}

func (s *stubDocumentService) Queue(ctx context.Context, actor models.Actor, filter models.DocumentFilter) (*models.DocumentQueue, error) {
	s.queueFilter = filter
	if err := service.Authorize(actor, service.OpReviewDocument, nil); err != nil {
		return nil, err
	}
	return &models.DocumentQueue{
		Items:      []models.DocumentQueueItem{{SubmittedDocument: models.SubmittedDocument{ID: "doc-1", Status: models.DocumentStatusPending}, EnrollmentCode: "MAT-1"}},
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1},
		Counts:     models.DocumentStatusCounts{Pending: 1, Verified: 4},
	}, s.err
}

func (s *stubDocumentService) Matrix(ctx context.Context, actor models.Actor, enrollmentID string) (*models.DocumentMatrix, error) {
	return &models.DocumentMatrix{EnrollmentID: enrollmentID}, s.err
}

func (s *stubDocumentService) Upload(ctx context.Context, actor models.Actor, enrollmentID, requirementID string, file service.UploadFile) (*models.SubmittedDocument, error) {
	data, err := io.ReadAll(file.Content)
	if err != nil {
		return nil, err
	}
	s.uploaded, s.filename = data, file.Filename
	return &models.SubmittedDocument{ID: "doc-1", EnrollmentID: enrollmentID, RequirementID: requirementID, Status: models.DocumentStatusPending}, s.err
}

func (s *stubDocumentService) Verify(ctx context.Context, actor models.Actor, documentID string) (*models.SubmittedDocument, error) {
	return &models.SubmittedDocument{ID: documentID, Status: models.DocumentStatusVerified}, s.err
}

func (s *stubDocumentService) Reject(ctx context.Context, actor models.Actor, documentID, observation string) (*models.SubmittedDocument, error) {
	return &models.SubmittedDocument{ID: documentID, Status: models.DocumentStatusRejected, Observation: observation}, s.err
}

func (s *stubDocumentService) Delete(ctx context.Context, actor models.Actor, documentID string) error {
	return s.err
}

func (s *stubDocumentService) DownloadURL(ctx context.Context, actor models.Actor, documentID string) (*models.DocumentDownload, error) {
	return &models.DocumentDownload{URL: "/api/v1/documents/" + documentID + "/download?token=t"}, s.err
}

func (s *stubDocumentService) Download(ctx context.Context, documentID, token string) (*service.DocumentContent, error) {
	if token != "valid" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return &service.DocumentContent{
		Filename:    "partida.pdf",
		ContentType: "application/pdf",
		Size:        int64(len(s.content)),
		Body:        io.NopCloser(strings.NewReader(s.content)),
	}, nil
}

type stubReportService struct{}

func (stubReportService) SectionRoster(ctx context.Context, actor models.Actor, sectionID string, format export.Format) (*service.ReportFile, error) {
	return &service.ReportFile{Filename: "roster_octavo_a.csv", ContentType: "text/csv", Data: []byte("#,Code\n")}, nil
}

func (stubReportService) PeriodStatusCounts(ctx context.Context, actor models.Actor, periodID string) ([]models.EnrollmentStatusCount, error) {
	return []models.EnrollmentStatusCount{{Status: models.EnrollmentStatusPending, Total: 3}}, nil
}

type stubTokens map[string]*models.JWTClaims

func (s stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
	Meta       json.RawMessage    `json:"meta"`
}

func newTestRouter(enrollments *stubEnrollmentService, documents *stubDocumentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	tokens := stubTokens{
		"rep":   {UserID: "rep-1", Role: models.RoleRepresentative},
		"staff": {UserID: "sec-1", Role: models.RoleSecretary},
		"admin": {UserID: "admin-1", Role: models.RoleAdmin},
	}
	RegisterRoutes(r.Group("/api/v1"), tokens, Handlers{
		Periods:      NewPeriodHandler(nil),
		GradeLevels:  NewGradeLevelHandler(nil),
		Sections:     NewSectionHandler(nil),
		Requirements: NewRequirementHandler(nil),
		Enrollments:  NewEnrollmentHandler(enrollments),
		Documents:    NewDocumentHandler(documents),
		Reports:      NewReportHandler(stubReportService{}),
	})
	return r
}

func do(r *gin.Engine, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestEnrollmentRoutesRequireToken(t *testing.T) {
	r := newTestRouter(&stubEnrollmentService{}, &stubDocumentService{})

	w := do(r, http.MethodGet, "/api/v1/enrollments", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, decode(t, w).Error.Code)

	w = do(r, http.MethodPost, "/api/v1/periods/per-1/activate", "staff", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEnrollmentListPassesFilters(t *testing.T) {
	svc := &stubEnrollmentService{}
	r := newTestRouter(svc, &stubDocumentService{})

	w := do(r, http.MethodGet, "/api/v1/enrollments?status=pending&periodId=per-1&page=2&limit=5", "rep", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Actor{ID: "rep-1", Role: models.RoleRepresentative}, svc.lastActor)
	assert.Equal(t, models.EnrollmentStatusPending, svc.lastFilter.Status)
	assert.Equal(t, "per-1", svc.lastFilter.PeriodID)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
}

func TestEnrollmentCreate(t *testing.T) {
	svc := &stubEnrollmentService{enrollment: &models.Enrollment{ID: "enr-1", Code: "MAT-1", Status: models.EnrollmentStatusPending}}
	r := newTestRouter(svc, &stubDocumentService{})

	payload, _ := json.Marshal(service.CreateEnrollmentRequest{StudentID: "stu-1", SectionID: "sec-a", Type: models.EnrollmentTypeNew})
	w := do(r, http.MethodPost, "/api/v1/enrollments", "rep", bytes.NewReader(payload), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	var detail models.EnrollmentDetail
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &detail))
	assert.Equal(t, "MAT-1", detail.Code)

	w = do(r, http.MethodPost, "/api/v1/enrollments", "rep", strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentTransitions(t *testing.T) {
	svc := &stubEnrollmentService{enrollment: &models.Enrollment{ID: "enr-1", Status: models.EnrollmentStatusRejected}}
	r := newTestRouter(svc, &stubDocumentService{})

	w := do(r, http.MethodPost, "/api/v1/enrollments/enr-1/reject", "staff", strings.NewReader(`{"reason":"missing birth certificate"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "missing birth certificate", svc.lastReason)
	assert.Equal(t, "sec-1", svc.lastActor.ID)

	w = do(r, http.MethodPost, "/api/v1/enrollments/enr-1/review", "staff", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.err = appErrors.Clone(appErrors.ErrConflict, "another approval was committed concurrently")
	w = do(r, http.MethodPost, "/api/v1/enrollments/enr-1/approve", "staff", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrConflict.Code, decode(t, w).Error.Code)
}

func TestEnrollmentHistoryOrder(t *testing.T) {
	svc := &stubEnrollmentService{}
	r := newTestRouter(svc, &stubDocumentService{})

	w := do(r, http.MethodGet, "/api/v1/enrollments/enr-1/history?order=desc", "rep", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastDesc)
}

func TestDocumentUploadMultipart(t *testing.T) {
	docs := &stubDocumentService{}
	r := newTestRouter(&stubEnrollmentService{}, docs)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "partida.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4 content"))
	require.NoError(t, writer.Close())

	w := do(r, http.MethodPost, "/api/v1/enrollments/enr-1/documents/req-1", "rep", body, writer.FormDataContentType())

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "%PDF-1.4 content", string(docs.uploaded))
	assert.Equal(t, "partida.pdf", docs.filename)

	w = do(r, http.MethodPost, "/api/v1/enrollments/enr-1/documents/req-1", "rep", strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentDownloadUsesSignedToken(t *testing.T) {
	docs := &stubDocumentService{content: "%PDF-1.4 payload"}
	r := newTestRouter(&stubEnrollmentService{}, docs)

	w := do(r, http.MethodGet, "/api/v1/documents/doc-1/download?token=valid", "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4 payload", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "partida.pdf")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/v1/documents/doc-1/download?token=forged", "", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/v1/documents/doc-1/download", "", nil, "").Code)

	w = do(r, http.MethodGet, "/api/v1/documents/doc-1/download-url", "rep", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentRejectAndDelete(t *testing.T) {
	r := newTestRouter(&stubEnrollmentService{}, &stubDocumentService{})

	w := do(r, http.MethodPost, "/api/v1/documents/doc-1/reject", "staff", strings.NewReader(`{"observation":"blurry"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc models.SubmittedDocument
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &doc))
	assert.Equal(t, "blurry", doc.Observation)

	w = do(r, http.MethodDelete, "/api/v1/documents/doc-1", "staff", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReportRoutes(t *testing.T) {
	r := newTestRouter(&stubEnrollmentService{}, &stubDocumentService{})

	w := do(r, http.MethodGet, "/api/v1/sections/sec-a/roster?format=csv", "staff", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "roster_octavo_a.csv")

	w = do(r, http.MethodGet, "/api/v1/periods/per-1/enrollment-counts", "staff", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestActorFromContextWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := actorFromContext(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u", Role: models.RoleTeacher})
	actor, ok := actorFromContext(c)
	assert.True(t, ok)
	assert.Equal(t, models.RoleTeacher, actor.Role)
}

func TestDocumentQueueDefaultsToPending(t *testing.T) {
	docs := &stubDocumentService{}
	r := newTestRouter(&stubEnrollmentService{}, docs)

	w := do(r, http.MethodGet, "/api/v1/documents?page=2&limit=10", "staff", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.DocumentStatusPending, docs.queueFilter.Status)
	assert.Equal(t, 2, docs.queueFilter.Page)
	assert.Equal(t, 10, docs.queueFilter.PageSize)

	env := decode(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
	var meta struct {
		Counts models.DocumentStatusCounts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, 4, meta.Counts.Verified)

	w = do(r, http.MethodGet, "/api/v1/documents?status=", "staff", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, docs.queueFilter.Status)

	w = do(r, http.MethodGet, "/api/v1/documents", "rep", nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCatalogUpdatesRequireAdmin(t *testing.T) {
	r := newTestRouter(&stubEnrollmentService{}, &stubDocumentService{})

	w := do(r, http.MethodPut, "/api/v1/sections/sec-a", "staff", strings.NewReader(`{"label":"A","capacity":30}`), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPut, "/api/v1/grade-levels/gl-1", "staff", strings.NewReader(`{"name":"Octavo"}`), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
