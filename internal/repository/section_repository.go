package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/database"
)

const sectionUniqueConstraint = "sections_period_grade_label_key"

// approvedCountExpr counts the approved, active enrollments of section sc.
const approvedCountExpr = `(SELECT COUNT(*) FROM enrollments e WHERE e.section_id = sc.id AND e.status = 'APPROVED' AND e.is_active = TRUE)`

// SectionRepository persists sections and answers seat-count queries.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections with their approved enrollment counts.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, error) {
	conditions := []string{"sc.is_active = TRUE"}
	var args []interface{}
	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.GradeLevelID != "" {
		conditions = append(conditions, fmt.Sprintf("sc.grade_level_id = $%d", len(args)+1))
		args = append(args, filter.GradeLevelID)
	}

	query := fmt.Sprintf(`SELECT sc.id, sc.period_id, sc.grade_level_id, sc.label, sc.capacity, sc.shift, sc.created_at,
sc.updated_at, sc.is_active, g.name AS grade_level_name, p.name AS period_name, %s AS approved_count
FROM sections sc
JOIN grade_levels g ON g.id = sc.grade_level_id
JOIN periods p ON p.id = sc.period_id
WHERE %s ORDER BY g.display_order, sc.label`, approvedCountExpr, strings.Join(conditions, " AND "))

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindByID loads a section.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, period_id, grade_level_id, label, capacity, shift, created_at, updated_at, is_active
FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID loads a section with names and its approved count.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	query := fmt.Sprintf(`SELECT sc.id, sc.period_id, sc.grade_level_id, sc.label, sc.capacity, sc.shift, sc.created_at,
sc.updated_at, sc.is_active, g.name AS grade_level_name, p.name AS period_name, %s AS approved_count
FROM sections sc
JOIN grade_levels g ON g.id = sc.grade_level_id
JOIN periods p ON p.id = sc.period_id
WHERE sc.id = $1`, approvedCountExpr)
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountApproved returns the number of approved, active enrollments in the section.
func (r *SectionRepository) CountApproved(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = 'APPROVED' AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID); err != nil {
		return 0, fmt.Errorf("count approved enrollments: %w", err)
	}
	return count, nil
}

// Create inserts a section.
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	section.AuditFields = models.NewAuditFields(time.Now().UTC())
	const query = `INSERT INTO sections (id, period_id, grade_level_id, label, capacity, shift, created_at, updated_at, is_active)
VALUES (:id, :period_id, :grade_level_id, :label, :capacity, :shift, :created_at, :updated_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		if database.IsUniqueViolation(err, sectionUniqueConstraint) {
			return ErrDuplicateSection
		}
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an active section. The period and grade level are
// fixed once enrollments can reference the section.
func (r *SectionRepository) Update(ctx context.Context, section *models.Section) error {
	section.Touch(time.Now().UTC())
	const query = `UPDATE sections SET label = :label, capacity = :capacity, shift = :shift, updated_at = :updated_at
WHERE id = :id AND is_active = TRUE`
	res, err := r.db.NamedExecContext(ctx, query, section)
	if err != nil {
		if database.IsUniqueViolation(err, sectionUniqueConstraint) {
			return ErrDuplicateSection
		}
		return fmt.Errorf("update section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update section rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountOpen returns the number of active enrollments in the section that are pending,
// under review or approved.
func (r *SectionRepository) CountOpen(ctx context.Context, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status IN ('PENDING', 'UNDER_REVIEW', 'APPROVED') AND is_active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sectionID); err != nil {
		return 0, fmt.Errorf("count open enrollments: %w", err)
	}
	return count, nil
}

// Deactivate hides a section from listings and new requests. Rows are kept because
// enrollments reference them.
func (r *SectionRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sections SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate section: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate section rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
