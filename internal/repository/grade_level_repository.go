package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/database"
)

const gradeLevelOrderConstraint = "grade_levels_display_order_key"

// GradeLevelRepository persists grade levels.
type GradeLevelRepository struct {
	db *sqlx.DB
}

// NewGradeLevelRepository constructs the repository.
func NewGradeLevelRepository(db *sqlx.DB) *GradeLevelRepository {
	return &GradeLevelRepository{db: db}
}

// List returns active grade levels by display order.
func (r *GradeLevelRepository) List(ctx context.Context) ([]models.GradeLevel, error) {
	const query = `SELECT id, name, display_order, sub_level, created_at, updated_at, is_active
FROM grade_levels WHERE is_active = TRUE ORDER BY display_order`
	var levels []models.GradeLevel
	if err := r.db.SelectContext(ctx, &levels, query); err != nil {
		return nil, fmt.Errorf("list grade levels: %w", err)
	}
	return levels, nil
}

// FindByID loads a grade level.
func (r *GradeLevelRepository) FindByID(ctx context.Context, id string) (*models.GradeLevel, error) {
	const query = `SELECT id, name, display_order, sub_level, created_at, updated_at, is_active FROM grade_levels WHERE id = $1`
	var level models.GradeLevel
	if err := r.db.GetContext(ctx, &level, query, id); err != nil {
		return nil, err
	}
	return &level, nil
}

// ExistsByOrder checks whether the display order is taken by a grade level other than excludeID.
func (r *GradeLevelRepository) ExistsByOrder(ctx context.Context, order int, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM grade_levels WHERE display_order = $1 AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, order, excludeID); err != nil {
		return false, fmt.Errorf("check grade level order: %w", err)
	}
	return exists, nil
}

// Create inserts a grade level.
func (r *GradeLevelRepository) Create(ctx context.Context, level *models.GradeLevel) error {
	if level.ID == "" {
		level.ID = uuid.NewString()
	}
	level.AuditFields = models.NewAuditFields(time.Now().UTC())
	const query = `INSERT INTO grade_levels (id, name, display_order, sub_level, created_at, updated_at, is_active)
VALUES (:id, :name, :display_order, :sub_level, :created_at, :updated_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, level); err != nil {
		if database.IsUniqueViolation(err, gradeLevelOrderConstraint) {
			return ErrDuplicateGradeLevelOrder
		}
		return fmt.Errorf("create grade level: %w", err)
	}
	return nil
}

// Update rewrites a grade level.
func (r *GradeLevelRepository) Update(ctx context.Context, level *models.GradeLevel) error {
	level.Touch(time.Now().UTC())
	const query = `UPDATE grade_levels SET name = :name, display_order = :display_order, sub_level = :sub_level,
updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, level)
	if err != nil {
		if database.IsUniqueViolation(err, gradeLevelOrderConstraint) {
			return ErrDuplicateGradeLevelOrder
		}
		return fmt.Errorf("update grade level: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update grade level rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
