package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

type gradeLevelRepository interface {
	List(ctx context.Context) ([]models.GradeLevel, error)
	FindByID(ctx context.Context, id string) (*models.GradeLevel, error)
	ExistsByOrder(ctx context.Context, order int, excludeID string) (bool, error)
	Create(ctx context.Context, level *models.GradeLevel) error
	Update(ctx context.Context, level *models.GradeLevel) error
}

// GradeLevelRequest describes a grade level to create or update.
type GradeLevelRequest struct {
	Name         string          `json:"name" validate:"required,max=100"`
	DisplayOrder int             `json:"display_order" validate:"min=0"`
	SubLevel     models.SubLevel `json:"sub_level" validate:"required,oneof=PREPARATORIA BASICA_ELEMENTAL BASICA_MEDIA BASICA_SUPERIOR BGU"`
}

// GradeLevelService manages the ordered grade catalog.
type GradeLevelService struct {
	repo      gradeLevelRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeLevelService constructs GradeLevelService.
func NewGradeLevelService(repo gradeLevelRepository, validate *validator.Validate, logger *zap.Logger) *GradeLevelService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeLevelService{repo: repo, validator: validate, logger: logger}
}

// List returns grade levels by display order.
func (s *GradeLevelService) List(ctx context.Context) ([]models.GradeLevel, error) {
	levels, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade levels")
	}
	return levels, nil
}

// Create registers a grade level with a unique display order.
func (s *GradeLevelService) Create(ctx context.Context, actor models.Actor, req GradeLevelRequest) (*models.GradeLevel, error) {
	if err := s.checkRequest(ctx, actor, "", req); err != nil {
		return nil, err
	}
	level := &models.GradeLevel{Name: strings.TrimSpace(req.Name), DisplayOrder: req.DisplayOrder, SubLevel: req.SubLevel}
	if err := s.repo.Create(ctx, level); err != nil {
		return nil, gradeLevelWriteError(err, "failed to create grade level")
	}
	return level, nil
}

// Update renames, reorders or regroups a grade level.
func (s *GradeLevelService) Update(ctx context.Context, actor models.Actor, id string, req GradeLevelRequest) (*models.GradeLevel, error) {
	if err := s.checkRequest(ctx, actor, id, req); err != nil {
		return nil, err
	}
	level, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "grade level not found", "failed to load grade level")
	}
	level.Name = strings.TrimSpace(req.Name)
	level.DisplayOrder = req.DisplayOrder
	level.SubLevel = req.SubLevel
	if err := s.repo.Update(ctx, level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade level not found")
		}
		return nil, gradeLevelWriteError(err, "failed to update grade level")
	}
	return level, nil
}

func (s *GradeLevelService) checkRequest(ctx context.Context, actor models.Actor, id string, req GradeLevelRequest) error {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade level payload")
	}
	taken, err := s.repo.ExistsByOrder(ctx, req.DisplayOrder, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate grade level order")
	}
	if taken {
		return displayOrderTaken()
	}
	return nil
}

func displayOrderTaken() error {
	return appErrors.Clone(appErrors.ErrConflict, "display order already used by another grade level")
}

// gradeLevelWriteError maps a write that lost the display order race to the same conflict.
func gradeLevelWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateGradeLevelOrder) {
		return displayOrderTaken()
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
