package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, error)
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	CountApproved(ctx context.Context, sectionID string) (int, error)
	CountOpen(ctx context.Context, sectionID string) (int, error)
	Create(ctx context.Context, section *models.Section) error
	Update(ctx context.Context, section *models.Section) error
	Deactivate(ctx context.Context, id string) error
}

type currentPeriodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
	FindCurrent(ctx context.Context) (*models.Period, error)
}

type gradeLevelReader interface {
	FindByID(ctx context.Context, id string) (*models.GradeLevel, error)
}

// CreateSectionRequest describes a new section. Capacity 0 means the default.
type CreateSectionRequest struct {
	PeriodID     string       `json:"period_id" validate:"required"`
	GradeLevelID string       `json:"grade_level_id" validate:"required"`
	Label        string       `json:"label" validate:"required,max=5"`
	Capacity     int          `json:"capacity" validate:"omitempty,min=1,max=60"`
	Shift        models.Shift `json:"shift" validate:"omitempty,oneof=MATUTINA VESPERTINA NOCTURNA"`
}

// UpdateSectionRequest carries the editable fields of a section. Shift is kept when empty.
type UpdateSectionRequest struct {
	Label    string       `json:"label" validate:"required,max=5"`
	Capacity int          `json:"capacity" validate:"required,min=1,max=60"`
	Shift    models.Shift `json:"shift" validate:"omitempty,oneof=MATUTINA VESPERTINA NOCTURNA"`
}

// SectionService manages sections and their derived seat counts.
type SectionService struct {
	repo        sectionRepository
	periods     currentPeriodReader
	gradeLevels gradeLevelReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSectionService constructs SectionService.
func NewSectionService(repo sectionRepository, periods currentPeriodReader, gradeLevels gradeLevelReader, validate *validator.Validate, logger *zap.Logger) *SectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SectionService{repo: repo, periods: periods, gradeLevels: gradeLevels, validator: validate, logger: logger}
}

// Capacity returns the seat accounting of a section, recomputed from approved enrollments.
func (s *SectionService) Capacity(ctx context.Context, actor models.Actor, id string) (*models.SectionCapacity, error) {
	if err := Authorize(actor, OpViewCapacity, nil); err != nil {
		return nil, err
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "section not found", "failed to load section")
	}
	approved, err := s.repo.CountApproved(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved enrollments")
	}
	seats := models.ComputeCapacity(section.Capacity, approved)
	seats.SectionID = section.ID
	return &seats, nil
}

// List returns the sections matching filter with their seat accounting.
func (s *SectionService) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionAvailability, error) {
	sections, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return withSeats(sections), nil
}

// Available lists the sections with free seats in periodID, or in the current period when empty.
func (s *SectionService) Available(ctx context.Context, periodID string) ([]models.SectionAvailability, error) {
	if periodID == "" {
		current, err := s.periods.FindCurrent(ctx)
		if err != nil {
			return nil, notFoundOr(err, "no current period configured", "failed to load current period")
		}
		periodID = current.ID
	}
	sections, err := s.List(ctx, models.SectionFilter{PeriodID: periodID})
	if err != nil {
		return nil, err
	}
	available := make([]models.SectionAvailability, 0, len(sections))
	for _, section := range sections {
		if !section.Seats.IsFull {
			available = append(available, section)
		}
	}
	return available, nil
}

// Create registers a section after checking its period and grade level.
func (s *SectionService) Create(ctx context.Context, actor models.Actor, req CreateSectionRequest) (*models.SectionDetail, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if _, err := s.periods.FindByID(ctx, req.PeriodID); err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	if _, err := s.gradeLevels.FindByID(ctx, req.GradeLevelID); err != nil {
		return nil, notFoundOr(err, "grade level not found", "failed to load grade level")
	}

	section := &models.Section{
		PeriodID:     req.PeriodID,
		GradeLevelID: req.GradeLevelID,
		Label:        strings.ToUpper(strings.TrimSpace(req.Label)),
		Capacity:     req.Capacity,
		Shift:        req.Shift,
	}
	if section.Capacity == 0 {
		section.Capacity = models.DefaultSectionCapacity
	}
	if section.Shift == "" {
		section.Shift = models.ShiftMorning
	}
	if err := s.repo.Create(ctx, section); err != nil {
		if errors.Is(err, repository.ErrDuplicateSection) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "section label already used for this grade level and period")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
	}
	detail, err := s.repo.FindDetailByID(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return detail, nil
}

// Update changes the label, capacity or shift of an active section. Capacity cannot drop
// below the seats already taken by approved enrollments.
func (s *SectionService) Update(ctx context.Context, actor models.Actor, id string, req UpdateSectionRequest) (*models.SectionDetail, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	section, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "section not found", "failed to load section")
	}
	if !section.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	approved, err := s.repo.CountApproved(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved enrollments")
	}
	if req.Capacity < approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("capacity cannot be lower than the %d approved enrollments", approved))
	}

	section.Label = strings.ToUpper(strings.TrimSpace(req.Label))
	section.Capacity = req.Capacity
	if req.Shift != "" {
		section.Shift = req.Shift
	}
	if err := s.repo.Update(ctx, section); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSection):
			return nil, appErrors.Clone(appErrors.ErrConflict, "section label already used for this grade level and period")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section")
	}
	s.logger.Info("section updated", zap.String("section_id", section.ID), zap.Int("capacity", section.Capacity), zap.String("actor_id", actor.ID))
	detail, err := s.repo.FindDetailByID(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return detail, nil
}

// Delete deactivates a section that holds no pending, in-review or approved enrollment.
func (s *SectionService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return err
	}
	open, err := s.repo.CountOpen(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count section enrollments")
	}
	if open > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "section still has open or approved enrollments")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete section")
	}
	s.logger.Info("section deactivated", zap.String("section_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func withSeats(sections []models.SectionDetail) []models.SectionAvailability {
	result := make([]models.SectionAvailability, 0, len(sections))
	for _, section := range sections {
		seats := models.ComputeCapacity(section.Capacity, section.ApprovedCount)
		seats.SectionID = section.ID
		result = append(result, models.SectionAvailability{SectionDetail: section, Seats: seats})
	}
	return result
}
