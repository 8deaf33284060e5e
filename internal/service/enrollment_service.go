package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsApproved(ctx context.Context, studentID, periodID, excludeID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateRequest(ctx context.Context, enrollment *models.Enrollment) error
	ApplyTransition(ctx context.Context, id string, fn repository.TransitionFunc) (*models.Enrollment, *models.EnrollmentHistoryEntry, error)
	ListHistory(ctx context.Context, enrollmentID string, desc bool) ([]models.EnrollmentHistoryEntry, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

// CreateEnrollmentRequest describes an enrollment request submitted by a requester.
type CreateEnrollmentRequest struct {
	StudentID         string                `json:"student_id" validate:"required"`
	SectionID         string                `json:"section_id" validate:"required"`
	Type              models.EnrollmentType `json:"type" validate:"required,oneof=NEW RENEWAL INCOMING_TRANSFER"`
	PriorEnrollmentID string                `json:"prior_enrollment_id"`
	Notes             string                `json:"notes" validate:"max=2000"`
}

// UpdateEnrollmentRequest rewrites the editable fields of a pending or rejected request.
type UpdateEnrollmentRequest struct {
	SectionID         string                `json:"section_id" validate:"required"`
	Type              models.EnrollmentType `json:"type" validate:"required,oneof=NEW RENEWAL INCOMING_TRANSFER"`
	PriorEnrollmentID string                `json:"prior_enrollment_id"`
	Notes             string                `json:"notes" validate:"max=2000"`
}

// EnrollmentServiceConfig tunes creation rules.
type EnrollmentServiceConfig struct {
	CodePrefix     string
	EnforceWindow  bool
	CodeMaxRetries int
}

// EnrollmentService runs the enrollment lifecycle.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	sections  sectionReader
	periods   periodReader
	events    EventSink
	metrics   *MetricsService
	config    EnrollmentServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, sections sectionReader, periods periodReader, events EventSink, metrics *MetricsService, cfg EnrollmentServiceConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = NopEventSink{}
	}
	if cfg.CodeMaxRetries <= 0 {
		cfg.CodeMaxRetries = 3
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		sections:  sections,
		periods:   periods,
		events:    events,
		metrics:   metrics,
		config:    cfg,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns enrollments with pagination metadata. Requesters only see their own.
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if err := Authorize(actor, OpListEnrollments, nil); err != nil {
		return nil, nil, err
	}
	if !actor.Role.IsStaff() {
		filter.RequesterID = actor.ID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns an enrollment with student and section details.
func (s *EnrollmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "enrollment not found", "failed to load enrollment")
	}
	if err := Authorize(actor, OpViewEnrollment, &detail.Enrollment); err != nil {
		return nil, err
	}
	return detail, nil
}

// Status returns the compact status summary of an enrollment.
func (s *EnrollmentService) Status(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentStatusSummary, error) {
	enrollment, err := s.load(ctx, actor, OpViewEnrollment, id)
	if err != nil {
		return nil, err
	}
	summary := enrollment.StatusSummary(s.now())
	return &summary, nil
}

// Create validates and stores a new PENDING enrollment with a fresh code.
func (s *EnrollmentService) Create(ctx context.Context, actor models.Actor, req CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := Authorize(actor, OpCreateEnrollment, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	if !actor.Role.IsStaff() && (student.RepresentativeID == nil || *student.RepresentativeID != actor.ID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not represented by the requester")
	}

	section, period, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if s.config.EnforceWindow && !period.CanEnroll(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the enrollment window for this period is closed")
	}
	if err := s.checkPrior(ctx, req.PriorEnrollmentID, student.ID); err != nil {
		return nil, err
	}
	if err := s.ensureNoApproved(ctx, student.ID, period.ID, ""); err != nil {
		return nil, err
	}

	enrollment := &models.Enrollment{
		StudentID:         student.ID,
		SectionID:         section.ID,
		PeriodID:          period.ID,
		RequesterID:       actor.ID,
		Type:              req.Type,
		Status:            models.EnrollmentStatusPending,
		Notes:             req.Notes,
		PriorEnrollmentID: stringPtr(req.PriorEnrollmentID),
	}
	if err := s.createWithCode(ctx, enrollment); err != nil {
		return nil, err
	}

	s.events.Publish(ctx, s.event(EventEnrollmentCreated, enrollment, "", actor.ID, ""))

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) createWithCode(ctx context.Context, enrollment *models.Enrollment) error {
	for attempt := 1; attempt <= s.config.CodeMaxRetries; attempt++ {
		enrollment.ID = ""
		enrollment.Code = models.NewEnrollmentCode(s.config.CodePrefix)
		err := s.repo.Create(ctx, enrollment)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateEnrollmentCode) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		s.logger.Warn("enrollment code collision", zap.String("code", enrollment.Code), zap.Int("attempt", attempt))
	}
	return appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique enrollment code, retry the request")
}

// Update changes section, type or prior enrollment while the request is editable.
func (s *EnrollmentService) Update(ctx context.Context, actor models.Actor, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	enrollment, err := s.load(ctx, actor, OpEditEnrollment, id)
	if err != nil {
		return nil, err
	}
	if !enrollment.IsEditable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment can only be edited while PENDING or REJECTED")
	}

	section, period, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPrior(ctx, req.PriorEnrollmentID, enrollment.StudentID); err != nil {
		return nil, err
	}
	if err := s.ensureNoApproved(ctx, enrollment.StudentID, period.ID, enrollment.ID); err != nil {
		return nil, err
	}

	enrollment.SectionID = section.ID
	enrollment.PeriodID = period.ID
	enrollment.Type = req.Type
	enrollment.PriorEnrollmentID = stringPtr(req.PriorEnrollmentID)
	enrollment.Notes = req.Notes
	if err := s.repo.UpdateRequest(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrStaleEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed since it was read, refresh and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// BeginReview moves a PENDING enrollment to UNDER_REVIEW.
func (s *EnrollmentService) BeginReview(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	return s.transition(ctx, actor, id, OpBeginReview, func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error) {
		return beginReview(e, actor.ID, now)
	})
}

// Approve moves an UNDER_REVIEW enrollment to APPROVED. The duplicate approved check runs
// against the locked row inside the transition.
func (s *EnrollmentService) Approve(ctx context.Context, actor models.Actor, id, note string) (*models.Enrollment, error) {
	return s.transition(ctx, actor, id, OpApprove, func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error) {
		return approve(e, actor.ID, note, now)
	})
}

// Reject moves a PENDING or UNDER_REVIEW enrollment to REJECTED.
func (s *EnrollmentService) Reject(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error) {
	return s.transition(ctx, actor, id, OpReject, func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error) {
		return reject(e, actor.ID, reason, now)
	})
}

// Annul moves an APPROVED enrollment to ANNULLED, releasing its seat.
func (s *EnrollmentService) Annul(ctx context.Context, actor models.Actor, id, reason string) (*models.Enrollment, error) {
	return s.transition(ctx, actor, id, OpAnnul, func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error) {
		return annul(e, actor.ID, reason, now)
	})
}

// Resubmit sends a REJECTED enrollment back to PENDING.
func (s *EnrollmentService) Resubmit(ctx context.Context, actor models.Actor, id string) (*models.Enrollment, error) {
	return s.transition(ctx, actor, id, OpResubmit, func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error) {
		return resubmit(e, actor.ID, now)
	})
}

// History returns the transitions of an enrollment, oldest first unless desc is set.
func (s *EnrollmentService) History(ctx context.Context, actor models.Actor, id string, desc bool) ([]models.EnrollmentHistoryEntry, error) {
	if _, err := s.load(ctx, actor, OpViewEnrollment, id); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, id, desc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment history")
	}
	return entries, nil
}

type applyFunc func(e *models.Enrollment, now time.Time) (*models.EnrollmentHistoryEntry, error)

func (s *EnrollmentService) transition(ctx context.Context, actor models.Actor, id string, op Operation, apply applyFunc) (*models.Enrollment, error) {
	now := s.now()
	var from models.EnrollmentStatus
	enrollment, entry, err := s.repo.ApplyTransition(ctx, id, func(ctx context.Context, checker repository.ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		if err := Authorize(actor, op, current); err != nil {
			return nil, err
		}
		from = current.Status
		if op == OpApprove && current.Status == models.EnrollmentStatusUnderReview {
			exists, err := checker.ExistsApproved(ctx, current.StudentID, current.PeriodID, current.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrValidation, "student already has an approved enrollment in this period")
			}
		}
		return apply(current, now)
	})
	if err != nil {
		return nil, s.transitionError(err, id, op)
	}

	s.metrics.RecordTransition(op, enrollment.Status)
	s.logger.Info("enrollment transitioned",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("operation", string(op)),
		zap.String("from", string(from)),
		zap.String("to", string(enrollment.Status)),
		zap.String("actor_id", actor.ID),
	)
	comment := ""
	if entry != nil {
		comment = entry.Comment
	}
	s.events.Publish(ctx, s.event(EventEnrollmentTransitioned, enrollment, from, actor.ID, comment))
	return enrollment, nil
}

func (s *EnrollmentService) transitionError(err error, id string, op Operation) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	case errors.Is(err, repository.ErrApprovedEnrollmentExists):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "another approval for this student and period was committed concurrently")
	case errors.Is(err, repository.ErrStaleEnrollment):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "enrollment changed since it was read, refresh and retry")
	}
	s.logger.Error("enrollment transition failed", zap.String("enrollment_id", id), zap.String("operation", string(op)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
}

func (s *EnrollmentService) event(eventType string, e *models.Enrollment, from models.EnrollmentStatus, actorID, comment string) models.EnrollmentEvent {
	return models.EnrollmentEvent{
		Type:         eventType,
		EnrollmentID: e.ID,
		Code:         e.Code,
		StudentID:    e.StudentID,
		RequesterID:  e.RequesterID,
		FromStatus:   from,
		ToStatus:     e.Status,
		ActorID:      actorID,
		Comment:      comment,
		OccurredAt:   s.now(),
	}
}

func (s *EnrollmentService) load(ctx context.Context, actor models.Actor, op Operation, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "enrollment not found", "failed to load enrollment")
	}
	if err := Authorize(actor, op, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) loadSection(ctx context.Context, sectionID string) (*models.Section, *models.Period, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		return nil, nil, notFoundOr(err, "section not found", "failed to load section")
	}
	if !section.IsActive {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "section is not active")
	}
	period, err := s.periods.FindByID(ctx, section.PeriodID)
	if err != nil {
		return nil, nil, notFoundOr(err, "period not found", "failed to load period")
	}
	return section, period, nil
}

func (s *EnrollmentService) checkPrior(ctx context.Context, priorID, studentID string) error {
	if priorID == "" {
		return nil
	}
	prior, err := s.repo.FindByID(ctx, priorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "prior enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior enrollment")
	}
	if prior.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrValidation, "prior enrollment belongs to another student")
	}
	return nil
}

func (s *EnrollmentService) ensureNoApproved(ctx context.Context, studentID, periodID, excludeID string) error {
	exists, err := s.repo.ExistsApproved(ctx, studentID, periodID, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrValidation, "student already has an approved enrollment in this period")
	}
	return nil
}

// notFoundOr maps sql.ErrNoRows to a not found error and anything else to an internal one.
func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
