package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	appErrors "github.com/noah-isme/matricula-api/pkg/errors"
)

const (
	requirementCacheKey     = "requirements:active"
	requirementCachePattern = "requirements:*"
)

type requirementRepository interface {
	ListActive(ctx context.Context) ([]models.DocumentRequirement, error)
	FindByID(ctx context.Context, id string) (*models.DocumentRequirement, error)
	Create(ctx context.Context, requirement *models.DocumentRequirement) error
	Update(ctx context.Context, requirement *models.DocumentRequirement) error
}

// RequirementRequest creates or updates a catalog entry. Nil flags take the catalog defaults.
type RequirementRequest struct {
	Code              string `json:"code" validate:"required,max=30"`
	Name              string `json:"name" validate:"required,max=150"`
	Description       string `json:"description"`
	DisplayOrder      int    `json:"display_order" validate:"min=0"`
	Mandatory         *bool  `json:"mandatory"`
	AppliesFirstTime  *bool  `json:"applies_first_time"`
	AppliesRenewal    *bool  `json:"applies_renewal"`
	AppliesTransfer   *bool  `json:"applies_transfer"`
	DisabilityOnly    bool   `json:"disability_only"`
	AllowedExtensions string `json:"allowed_extensions" validate:"max=100"`
	MaxSizeMB         int    `json:"max_size_mb" validate:"omitempty,min=1,max=50"`
	Active            *bool  `json:"is_active"`
}

// RequirementService serves the document requirement catalog, cached in Redis when enabled.
type RequirementService struct {
	repo      requirementRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequirementService constructs RequirementService. cache may be nil.
func NewRequirementService(repo requirementRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *RequirementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequirementService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// ListActive returns the active catalog ordered by display order.
func (s *RequirementService) ListActive(ctx context.Context) ([]models.DocumentRequirement, error) {
	var cached []models.DocumentRequirement
	if hit, err := s.cache.Get(ctx, requirementCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	requirements, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document requirements")
	}
	_ = s.cache.Set(ctx, requirementCacheKey, requirements, 0)
	return requirements, nil
}

// Get returns one requirement.
func (s *RequirementService) Get(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	requirement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "document requirement not found", "failed to load document requirement")
	}
	return requirement, nil
}

// Create adds a catalog entry.
func (s *RequirementService) Create(ctx context.Context, actor models.Actor, req RequirementRequest) (*models.DocumentRequirement, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	requirement := &models.DocumentRequirement{}
	applyRequirement(requirement, req, true)
	if err := s.repo.Create(ctx, requirement); err != nil {
		return nil, requirementWriteError(err, "failed to create document requirement")
	}
	s.invalidate(ctx)
	return requirement, nil
}

// Update rewrites a catalog entry.
func (s *RequirementService) Update(ctx context.Context, actor models.Actor, id string, req RequirementRequest) (*models.DocumentRequirement, error) {
	if err := Authorize(actor, OpManageCatalog, nil); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	requirement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "document requirement not found", "failed to load document requirement")
	}
	applyRequirement(requirement, req, false)
	if err := s.repo.Update(ctx, requirement); err != nil {
		return nil, requirementWriteError(err, "failed to update document requirement")
	}
	s.invalidate(ctx)
	return requirement, nil
}

func (s *RequirementService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, requirementCachePattern); err != nil {
		s.logger.Warn("requirement cache not invalidated", zap.Error(err))
	}
}

// applyRequirement copies req onto requirement. On create, nil flags take the catalog
// defaults; on update they keep the stored value.
func applyRequirement(requirement *models.DocumentRequirement, req RequirementRequest, create bool) {
	requirement.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	requirement.Name = strings.TrimSpace(req.Name)
	requirement.Description = req.Description
	requirement.DisplayOrder = req.DisplayOrder
	requirement.DisabilityOnly = req.DisabilityOnly
	if create {
		requirement.Mandatory = true
		requirement.AppliesFirstTime = true
		requirement.AppliesTransfer = true
		requirement.IsActive = true
	}
	setFlag(&requirement.Mandatory, req.Mandatory)
	setFlag(&requirement.AppliesFirstTime, req.AppliesFirstTime)
	setFlag(&requirement.AppliesRenewal, req.AppliesRenewal)
	setFlag(&requirement.AppliesTransfer, req.AppliesTransfer)
	setFlag(&requirement.IsActive, req.Active)

	requirement.AllowedExtensions = strings.ToLower(strings.ReplaceAll(req.AllowedExtensions, " ", ""))
	if requirement.AllowedExtensions == "" {
		requirement.AllowedExtensions = models.DefaultAllowedExtensions
	}
	requirement.MaxSizeMB = req.MaxSizeMB
	if requirement.MaxSizeMB == 0 {
		requirement.MaxSizeMB = models.DefaultMaxSizeMB
	}
}

func setFlag(dst *bool, value *bool) {
	if value != nil {
		*dst = *value
	}
}

func requirementWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateRequirementCode) {
		return appErrors.Clone(appErrors.ErrConflict, "requirement code already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
