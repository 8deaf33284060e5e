package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type periodRepository interface {
	List(ctx context.Context) ([]models.Period, error)
	FindByID(ctx context.Context, id string) (*models.Period, error)
	FindCurrent(ctx context.Context) (*models.Period, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, period *models.Period) error
	Update(ctx context.Context, period *models.Period) error
	SetCurrent(ctx context.Context, id string) error
}

// PeriodRequest is the payload for creating or updating a period. Dates use YYYY-MM-DD.
type PeriodRequest struct {
	Name                string        `json:"name" validate:"required,max=100"`
	StartDate           string        `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string        `json:"end_date" validate:"required,datetime=2006-01-02"`
	EnrollmentStart     string        `json:"enrollment_start" validate:"required,datetime=2006-01-02"`
	EnrollmentEnd       string        `json:"enrollment_end" validate:"required,datetime=2006-01-02"`
	AllowsExtraordinary bool          `json:"allows_extraordinary"`
	ExtraordinaryStart  string        `json:"extraordinary_start" validate:"omitempty,datetime=2006-01-02"`
	ExtraordinaryEnd    string        `json:"extraordinary_end" validate:"omitempty,datetime=2006-01-02"`
	Regime              models.Regime `json:"regime" validate:"omitempty,oneof=SIERRA COSTA"`
	Notes               string        `json:"notes"`
}

// PeriodService manages academic periods and the single current period.
type PeriodService struct {
	repo      periodRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPeriodService constructs PeriodService.
func NewPeriodService(repo periodRepository, validate *validator.Validate, logger *zap.Logger) *PeriodService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PeriodService{repo: repo, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// List returns every active period with its window state.
func (s *PeriodService) List(ctx context.Context) ([]models.PeriodWithWindow, error) {
	periods, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list periods")
	}
	now := s.now()
	result := make([]models.PeriodWithWindow, 0, len(periods))
	for _, period := range periods {
		result = append(result, withWindow(period, now))
	}
	return result, nil
}

// Get returns one period.
func (s *PeriodService) Get(ctx context.Context, id string) (*models.PeriodWithWindow, error) {
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	result := withWindow(*period, s.now())
	return &result, nil
}

// Current returns the period flagged as current.
func (s *PeriodService) Current(ctx context.Context) (*models.PeriodWithWindow, error) {
	period, err := s.repo.FindCurrent(ctx)
	if err != nil {
		return nil, notFoundOr(err, "no current period configured", "failed to load current period")
	}
	result := withWindow(*period, s.now())
	return &result, nil
}

// Create registers a period. New periods are never current.
func (s *PeriodService) Create(ctx context.Context, actor models.Actor, req PeriodRequest) (*models.Period, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	period := &models.Period{}
	if err := s.apply(ctx, period, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create period")
	}
	return period, nil
}

// Update rewrites a period's dates and metadata.
func (s *PeriodService) Update(ctx context.Context, actor models.Actor, id string, req PeriodRequest) (*models.Period, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "period not found", "failed to load period")
	}
	if err := s.apply(ctx, period, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	return period, nil
}

// SetCurrent makes id the only current period.
func (s *PeriodService) SetCurrent(ctx context.Context, actor models.Actor, id string) (*models.Period, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	if err := s.repo.SetCurrent(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPeriodNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate period")
	}
	s.logger.Info("current period changed", zap.String("period_id", id), zap.String("actor_id", actor.ID))
	period, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	return period, nil
}

func (s *PeriodService) apply(ctx context.Context, period *models.Period, req PeriodRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	enrollStart, _ := time.Parse(dateLayout, req.EnrollmentStart)
	enrollEnd, _ := time.Parse(dateLayout, req.EnrollmentEnd)
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	if !enrollStart.Before(enrollEnd) {
		return appErrors.Clone(appErrors.ErrValidation, "enrollment_start must be before enrollment_end")
	}

	var extraStart, extraEnd *time.Time
	if req.AllowsExtraordinary {
		if req.ExtraordinaryStart == "" || req.ExtraordinaryEnd == "" {
			return appErrors.Clone(appErrors.ErrValidation, "extraordinary window requires both dates")
		}
		from, _ := time.Parse(dateLayout, req.ExtraordinaryStart)
		to, _ := time.Parse(dateLayout, req.ExtraordinaryEnd)
		if !from.Before(to) {
			return appErrors.Clone(appErrors.ErrValidation, "extraordinary_start must be before extraordinary_end")
		}
		extraStart, extraEnd = &from, &to
	}

	name := strings.TrimSpace(req.Name)
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate period name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "a period with this name already exists")
	}

	period.Name = name
	period.StartDate = start
	period.EndDate = end
	period.EnrollmentStart = enrollStart
	period.EnrollmentEnd = enrollEnd
	period.AllowsExtraordinary = req.AllowsExtraordinary
	period.ExtraordinaryStart = extraStart
	period.ExtraordinaryEnd = extraEnd
	period.Regime = req.Regime
	if period.Regime == "" {
		period.Regime = models.RegimeSierra
	}
	period.Notes = req.Notes
	return nil
}

func withWindow(period models.Period, now time.Time) models.PeriodWithWindow {
	return models.PeriodWithWindow{
		Period: period,
		Window: models.PeriodWindow{
			EnrollmentOpen:    period.EnrollmentOpen(now),
			ExtraordinaryOpen: period.ExtraordinaryOpen(now),
			CanEnroll:         period.CanEnroll(now),
		},
	}
}
