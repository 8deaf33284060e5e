package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
	"github.com/noah-isme/matricula-api/pkg/storage"
)

const sniffLength = 512

// Upload outcomes reported to metrics.
const (
	uploadAccepted = "accepted"
	uploadRejected = "rejected"
	uploadFailed   = "failed"
)

// expectedMIME lists the detected content types accepted for well-known extensions.
// Extensions not listed here are accepted with any content type.
var expectedMIME = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
}

type documentRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubmittedDocument, error)
	FindByID(ctx context.Context, id string) (*models.SubmittedDocument, error)
	Upsert(ctx context.Context, document *models.SubmittedDocument, replaceVerified bool) (replacedPath string, err error)
	UpdateReview(ctx context.Context, document *models.SubmittedDocument) error
	Delete(ctx context.Context, id string) error
	ListForReview(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentQueueItem, int, error)
	CountByStatus(ctx context.Context) ([]models.DocumentStatusCount, error)
}

type enrollmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type requirementCatalog interface {
	ListActive(ctx context.Context) ([]models.DocumentRequirement, error)
	Get(ctx context.Context, id string) (*models.DocumentRequirement, error)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader, maxBytes int64) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error)
}

// UploadFile is an incoming document stream. Size is the declared length, or -1 when unknown.
type UploadFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// DocumentContent is an opened stored document ready to be streamed.
type DocumentContent struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// DocumentService runs the completeness matrix and the submitted document lifecycle.
type DocumentService struct {
	repo         documentRepository
	enrollments  enrollmentLookup
	students     studentReader
	requirements requirementCatalog
	store        fileStore
	signer       urlSigner
	metrics      *MetricsService
	downloadBase string
	logger       *zap.Logger
	now          func() time.Time
}

// NewDocumentService constructs DocumentService. downloadBase is the API prefix used to
// build signed download links.
func NewDocumentService(repo documentRepository, enrollments enrollmentLookup, students studentReader, requirements requirementCatalog, store fileStore, signer urlSigner, metrics *MetricsService, downloadBase string, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:         repo,
		enrollments:  enrollments,
		students:     students,
		requirements: requirements,
		store:        store,
		signer:       signer,
		metrics:      metrics,
		downloadBase: strings.TrimRight(downloadBase, "/"),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Matrix returns the required-vs-submitted view of an enrollment.
func (s *DocumentService) Matrix(ctx context.Context, actor models.Actor, enrollmentID string) (*models.DocumentMatrix, error) {
	enrollment, err := s.loadEnrollment(ctx, actor, OpViewDocuments, enrollmentID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	catalog, err := s.requirements.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	submitted, err := s.repo.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitted documents")
	}
	matrix := BuildDocumentMatrix(*enrollment, student.HasDisability, catalog, submitted)
	return &matrix, nil
}

// Upload validates and stores a document for (enrollment, requirement), replacing any
// previous submission. Only staff may replace a verified document. The replaced file is
// removed after the metadata is saved; failing to remove it is only logged.
func (s *DocumentService) Upload(ctx context.Context, actor models.Actor, enrollmentID, requirementID string, file UploadFile) (*models.SubmittedDocument, error) {
	enrollment, err := s.loadEnrollment(ctx, actor, OpUploadDocument, enrollmentID)
	if err != nil {
		return nil, err
	}
	requirement, err := s.requirements.Get(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	if !requirement.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document requirement is not active")
	}

	if err := validateUpload(*requirement, file); err != nil {
		s.metrics.RecordUpload(uploadRejected)
		return nil, err
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.metrics.RecordUpload(uploadFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read uploaded file")
	}
	head = head[:n]
	if n == 0 {
		s.metrics.RecordUpload(uploadRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file is empty")
	}
	ext := fileExtension(file.Filename)
	mimeType := http.DetectContentType(head)
	if !mimeMatches(ext, mimeType) {
		s.metrics.RecordUpload(uploadRejected)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file content (%s) does not match the .%s extension", mimeType, ext))
	}

	relPath := documentPath(enrollment, requirement.Code, ext)
	written, err := s.store.SaveStream(relPath, io.MultiReader(bytes.NewReader(head), file.Content), requirement.MaxSizeBytes())
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			s.metrics.RecordUpload(uploadRejected)
			return nil, sizeError(*requirement)
		}
		s.metrics.RecordUpload(uploadFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store uploaded file")
	}

	document := &models.SubmittedDocument{
		EnrollmentID:     enrollment.ID,
		RequirementID:    requirement.ID,
		FilePath:         relPath,
		OriginalFilename: filepath.Base(file.Filename),
		SizeBytes:        written,
		MimeType:         mimeType,
		UploadedBy:       actor.ID,
	}
	replacedPath, err := s.repo.Upsert(ctx, document, actor.Role.IsStaff())
	if err != nil {
		s.removeFile(relPath, "discarding file of failed upload")
		if errors.Is(err, repository.ErrDocumentVerified) {
			s.metrics.RecordUpload(uploadRejected)
			return nil, appErrors.Clone(appErrors.ErrForbidden, "verified documents can only be replaced by staff")
		}
		s.metrics.RecordUpload(uploadFailed)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submitted document")
	}
	if replacedPath != "" && replacedPath != relPath {
		s.removeFile(replacedPath, "previous document file not removed")
	}

	s.metrics.RecordUpload(uploadAccepted)
	s.logger.Info("document uploaded",
		zap.String("document_id", document.ID),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("requirement", requirement.Code),
		zap.Bool("replaced", replacedPath != ""),
	)
	return document, nil
}

// Queue returns a page of submitted documents across every enrollment for staff review,
// with the totals per status.
func (s *DocumentService) Queue(ctx context.Context, actor models.Actor, filter models.DocumentFilter) (*models.DocumentQueue, error) {
	if err := Authorize(actor, OpReviewDocument, nil); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Reviewable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document status")
	}
	filter.Page, filter.PageSize = models.NormalizePage(filter.Page, filter.PageSize)
	items, total, err := s.repo.ListForReview(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}
	queue := &models.DocumentQueue{
		Items:      items,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	for _, count := range counts {
		switch count.Status {
		case models.DocumentStatusPending:
			queue.Counts.Pending = count.Total
		case models.DocumentStatusVerified:
			queue.Counts.Verified = count.Total
		case models.DocumentStatusRejected:
			queue.Counts.Rejected = count.Total
		}
	}
	return queue, nil
}

// Verify accepts a pending document.
func (s *DocumentService) Verify(ctx context.Context, actor models.Actor, documentID string) (*models.SubmittedDocument, error) {
	document, _, err := s.loadDocument(ctx, actor, OpReviewDocument, documentID)
	if err != nil {
		return nil, err
	}
	if document.Status != models.DocumentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot verify a document in status %s", document.Status))
	}
	now := s.now()
	document.Status = models.DocumentStatusVerified
	document.Observation = ""
	document.VerifiedBy = stringPtr(actor.ID)
	document.VerifiedAt = &now
	if err := s.repo.UpdateReview(ctx, document); err != nil {
		return nil, reviewError(err, "failed to verify document")
	}
	return document, nil
}

// Reject refuses a pending document with an observation the requester will see.
func (s *DocumentService) Reject(ctx context.Context, actor models.Actor, documentID, observation string) (*models.SubmittedDocument, error) {
	observation = strings.TrimSpace(observation)
	if observation == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an observation is required to reject a document")
	}
	document, _, err := s.loadDocument(ctx, actor, OpReviewDocument, documentID)
	if err != nil {
		return nil, err
	}
	if document.Status != models.DocumentStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot reject a document in status %s", document.Status))
	}
	now := s.now()
	document.Status = models.DocumentStatusRejected
	document.Observation = observation
	document.VerifiedBy = stringPtr(actor.ID)
	document.VerifiedAt = &now
	if err := s.repo.UpdateReview(ctx, document); err != nil {
		return nil, reviewError(err, "failed to reject document")
	}
	return document, nil
}

// Delete removes a submitted document. Requesters cannot remove verified documents.
func (s *DocumentService) Delete(ctx context.Context, actor models.Actor, documentID string) error {
	document, _, err := s.loadDocument(ctx, actor, OpDeleteDocument, documentID)
	if err != nil {
		return err
	}
	if !actor.Role.IsStaff() && document.Status == models.DocumentStatusVerified {
		return appErrors.Clone(appErrors.ErrForbidden, "verified documents can only be removed by staff")
	}
	if err := s.repo.Delete(ctx, document.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.removeFile(document.FilePath, "deleted document file not removed")
	return nil
}

// DownloadURL returns a signed, time limited link to the stored file.
func (s *DocumentService) DownloadURL(ctx context.Context, actor models.Actor, documentID string) (*models.DocumentDownload, error) {
	document, _, err := s.loadDocument(ctx, actor, OpViewDocuments, documentID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(document.ID, document.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	link := fmt.Sprintf("%s/documents/%s/download?token=%s", s.downloadBase, url.PathEscape(document.ID), url.QueryEscape(token))
	return &models.DocumentDownload{URL: link, ExpiresAt: expiresAt}, nil
}

// Download opens the file referenced by a signed token. The caller must close Body.
func (s *DocumentService) Download(ctx context.Context, documentID, token string) (*DocumentContent, error) {
	resourceID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download token")
	}
	if resourceID != documentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not grant access to this document")
	}
	document, err := s.repo.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFoundOr(err, "document not found", "failed to load document")
	}
	if document.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document was replaced, request a new link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "stored file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to open stored file")
	}
	filename := document.OriginalFilename
	if filename == "" {
		filename = path.Base(relPath)
	}
	return &DocumentContent{Filename: filename, ContentType: document.MimeType, Size: document.SizeBytes, Body: file}, nil
}

func (s *DocumentService) loadEnrollment(ctx context.Context, actor models.Actor, op Operation, id string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "enrollment not found", "failed to load enrollment")
	}
	if err := Authorize(actor, op, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *DocumentService) loadDocument(ctx context.Context, actor models.Actor, op Operation, id string) (*models.SubmittedDocument, *models.Enrollment, error) {
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "document not found", "failed to load document")
	}
	enrollment, err := s.loadEnrollment(ctx, actor, op, document.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	return document, enrollment, nil
}

// removeFile deletes a stored file on a best-effort basis.
func (s *DocumentService) removeFile(relPath, message string) {
	if relPath == "" {
		return
	}
	if err := s.store.Delete(relPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		storageErr := appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
		s.logger.Warn(message, zap.String("path", relPath), zap.String("code", storageErr.Code), zap.Error(err))
	}
}

func reviewError(err error, message string) error {
	if errors.Is(err, repository.ErrStaleDocument) {
		return appErrors.Clone(appErrors.ErrConflict, "document changed since it was read, reload and retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validateUpload(requirement models.DocumentRequirement, file UploadFile) error {
	if strings.TrimSpace(file.Filename) == "" || file.Content == nil {
		return appErrors.Clone(appErrors.ErrValidation, "a file is required")
	}
	if !requirement.AllowsExtension(file.Filename) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type not allowed, accepted: %s", strings.Join(requirement.Extensions(), ", ")))
	}
	if file.Size > requirement.MaxSizeBytes() {
		return sizeError(requirement)
	}
	return nil
}

func sizeError(requirement models.DocumentRequirement) error {
	return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d MB limit", requirement.MaxSizeBytes()/(1024*1024)))
}

func mimeMatches(ext, detected string) bool {
	accepted, ok := expectedMIME[ext]
	if !ok {
		return true
	}
	for _, candidate := range accepted {
		if strings.HasPrefix(detected, candidate) {
			return true
		}
	}
	return false
}

func fileExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// documentPath builds documents/{period}/{code}/{requirement}_{uuid}.{ext}.
func documentPath(enrollment *models.Enrollment, requirementCode, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", requirementCode, uuid.NewString(), ext)
	return path.Join("documents", enrollment.PeriodID, enrollment.Code, name)
}
