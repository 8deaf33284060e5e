package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
)

const periodColumns = `id, name, start_date, end_date, enrollment_start, enrollment_end, allows_extraordinary,
extraordinary_start, extraordinary_end, is_current, regime, notes, created_at, updated_at, is_active`

// PeriodRepository handles persistence for academic periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository instantiates a period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// List returns active periods, newest first.
func (r *PeriodRepository) List(ctx context.Context) ([]models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods WHERE is_active = TRUE ORDER BY start_date DESC`
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// FindByID loads a period by identifier.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods WHERE id = $1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// FindCurrent returns the period flagged as current.
func (r *PeriodRepository) FindCurrent(ctx context.Context) (*models.Period, error) {
	query := `SELECT ` + periodColumns + ` FROM periods WHERE is_current = TRUE AND is_active = TRUE LIMIT 1`
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query); err != nil {
		return nil, err
	}
	return &period, nil
}

// ExistsByName checks whether another period already uses the name.
func (r *PeriodRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM periods WHERE LOWER(name) = LOWER($1) AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check period name: %w", err)
	}
	return exists, nil
}

// Create inserts a new period. It is never created as current; use SetCurrent.
func (r *PeriodRepository) Create(ctx context.Context, period *models.Period) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	period.AuditFields = models.NewAuditFields(time.Now().UTC())
	period.IsCurrent = false

	const query = `INSERT INTO periods (id, name, start_date, end_date, enrollment_start, enrollment_end, allows_extraordinary,
extraordinary_start, extraordinary_end, is_current, regime, notes, created_at, updated_at, is_active)
VALUES (:id, :name, :start_date, :end_date, :enrollment_start, :enrollment_end, :allows_extraordinary,
:extraordinary_start, :extraordinary_end, :is_current, :regime, :notes, :created_at, :updated_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create period: %w", err)
	}
	return nil
}

// Update modifies an existing period; the current flag is left untouched.
func (r *PeriodRepository) Update(ctx context.Context, period *models.Period) error {
	period.Touch(time.Now().UTC())
	const query = `UPDATE periods SET name = :name, start_date = :start_date, end_date = :end_date,
enrollment_start = :enrollment_start, enrollment_end = :enrollment_end, allows_extraordinary = :allows_extraordinary,
extraordinary_start = :extraordinary_start, extraordinary_end = :extraordinary_end, regime = :regime, notes = :notes,
updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("update period: %w", err)
	}
	return nil
}

// SetCurrent marks the period as current and clears the flag on every other period in one transaction.
func (r *PeriodRepository) SetCurrent(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set current tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE periods SET is_current = FALSE, updated_at = $1 WHERE is_current = TRUE AND id <> $2`, now, id); err != nil {
		return fmt.Errorf("clear current period: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE periods SET is_current = TRUE, updated_at = $2 WHERE id = $1 AND is_active = TRUE`, id, now)
	if err != nil {
		return fmt.Errorf("set current period: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set current period rows: %w", err)
	}
	if affected == 0 {
		return ErrPeriodNotFound
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit set current tx: %w", err)
	}
	return nil
}
