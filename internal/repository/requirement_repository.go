package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/database"
)

const requirementColumns = `id, code, name, description, display_order, mandatory, applies_first_time, applies_renewal,
applies_transfer, disability_only, allowed_extensions, max_size_mb, created_at, updated_at, is_active`

// RequirementRepository persists the document requirement catalog.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// ListActive returns the active catalog ordered by display order.
func (r *RequirementRepository) ListActive(ctx context.Context) ([]models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements WHERE is_active = TRUE ORDER BY display_order, name`
	var requirements []models.DocumentRequirement
	if err := r.db.SelectContext(ctx, &requirements, query); err != nil {
		return nil, fmt.Errorf("list document requirements: %w", err)
	}
	return requirements, nil
}

// FindByID loads a requirement.
func (r *RequirementRepository) FindByID(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements WHERE id = $1`
	var requirement models.DocumentRequirement
	if err := r.db.GetContext(ctx, &requirement, query, id); err != nil {
		return nil, err
	}
	return &requirement, nil
}

// Create inserts a requirement.
func (r *RequirementRepository) Create(ctx context.Context, requirement *models.DocumentRequirement) error {
	if requirement.ID == "" {
		requirement.ID = uuid.NewString()
	}
	requirement.AuditFields = models.NewAuditFields(time.Now().UTC())
	const query = `INSERT INTO document_requirements (id, code, name, description, display_order, mandatory, applies_first_time,
applies_renewal, applies_transfer, disability_only, allowed_extensions, max_size_mb, created_at, updated_at, is_active)
VALUES (:id, :code, :name, :description, :display_order, :mandatory, :applies_first_time,
:applies_renewal, :applies_transfer, :disability_only, :allowed_extensions, :max_size_mb, :created_at, :updated_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, requirement); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateRequirementCode
		}
		return fmt.Errorf("create document requirement: %w", err)
	}
	return nil
}

// Update rewrites a requirement.
func (r *RequirementRepository) Update(ctx context.Context, requirement *models.DocumentRequirement) error {
	requirement.Touch(time.Now().UTC())
	const query = `UPDATE document_requirements SET code = :code, name = :name, description = :description,
display_order = :display_order, mandatory = :mandatory, applies_first_time = :applies_first_time,
applies_renewal = :applies_renewal, applies_transfer = :applies_transfer, disability_only = :disability_only,
allowed_extensions = :allowed_extensions, max_size_mb = :max_size_mb, is_active = :is_active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, requirement); err != nil {
		if database.IsUniqueViolation(err, "") {
			return ErrDuplicateRequirementCode
		}
		return fmt.Errorf("update document requirement: %w", err)
	}
	return nil
}
