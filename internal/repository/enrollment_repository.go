package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/database"
)

// Constraint names declared in migrations/0001_init.sql.
const (
	enrollmentCodeConstraint    = "enrollments_code_key"
	approvedPerPeriodConstraint = "uq_enrollments_approved_student_period"
)

const enrollmentColumns = `id, code, student_id, section_id, period_id, requester_id, type, status, requested_at,
review_started_at, resolved_at, annulled_at, reviewed_by, annulled_by, notes, rejection_reason, annulment_reason,
prior_enrollment_id, rejection_count, version, created_at, updated_at, is_active`

// ApprovedChecker answers whether another approved enrollment exists for a student in a period.
type ApprovedChecker interface {
	ExistsApproved(ctx context.Context, studentID, periodID, excludeID string) (bool, error)
}

// TransitionFunc mutates the locked enrollment in place and returns the history entry to append.
type TransitionFunc func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error)

// EnrollmentRepository handles persistence of enrollments and their history.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN sections sc ON sc.id = e.section_id
JOIN grade_levels g ON g.id = sc.grade_level_id
JOIN periods p ON p.id = e.period_id`
	conditions := []string{"e.is_active = TRUE"}
	var args []interface{}

	if filter.PeriodID != "" {
		conditions = append(conditions, fmt.Sprintf("e.period_id = $%d", len(args)+1))
		args = append(args, filter.PeriodID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.RequesterID != "" {
		conditions = append(conditions, fmt.Sprintf("e.requester_id = $%d", len(args)+1))
		args = append(args, filter.RequesterID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(e.code ILIKE $%d OR s.full_name ILIKE $%d OR s.identification_number ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"requested_at": "e.requested_at",
		"code":         "e.code",
		"status":       "e.status",
		"student_name": "s.full_name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.requested_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.*, s.full_name AS student_name, s.identification_number AS student_identification,
s.has_disability AS student_has_disability, sc.label AS section_label, g.name AS grade_level_name, p.name AS period_name
%s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with student and section info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.*, s.full_name AS student_name, s.identification_number AS student_identification,
s.has_disability AS student_has_disability, sc.label AS section_label, g.name AS grade_level_name, p.name AS period_name
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN sections sc ON sc.id = e.section_id
JOIN grade_levels g ON g.id = sc.grade_level_id
JOIN periods p ON p.id = e.period_id
WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsApproved checks whether an approved enrollment other than excludeID exists for the student and period.
func (r *EnrollmentRepository) ExistsApproved(ctx context.Context, studentID, periodID, excludeID string) (bool, error) {
	return existsApproved(ctx, r.db, studentID, periodID, excludeID)
}

func existsApproved(ctx context.Context, q sqlx.QueryerContext, studentID, periodID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE student_id = $1 AND period_id = $2 AND status = $3 AND is_active = TRUE"
	args := []interface{}{studentID, periodID, models.EnrollmentStatusApproved}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := sqlx.GetContext(ctx, q, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}

type txApprovedChecker struct {
	tx *sqlx.Tx
}

func (c txApprovedChecker) ExistsApproved(ctx context.Context, studentID, periodID, excludeID string) (bool, error) {
	return existsApproved(ctx, c.tx, studentID, periodID, excludeID)
}

// Create persists a new enrollment. A code collision is reported as ErrDuplicateEnrollmentCode
// so the caller can regenerate the code.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.RequestedAt.IsZero() {
		enrollment.RequestedAt = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.AuditFields = models.NewAuditFields(now)
	}
	enrollment.Version = 1

	const query = `INSERT INTO enrollments (id, code, student_id, section_id, period_id, requester_id, type, status,
requested_at, notes, prior_enrollment_id, rejection_count, version, created_at, updated_at, is_active)
VALUES (:id, :code, :student_id, :section_id, :period_id, :requester_id, :type, :status,
:requested_at, :notes, :prior_enrollment_id, :rejection_count, :version, :created_at, :updated_at, :is_active)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if database.IsUniqueViolation(err, enrollmentCodeConstraint) {
			return ErrDuplicateEnrollmentCode
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateRequest rewrites the editable fields of a pending or rejected enrollment.
func (r *EnrollmentRepository) UpdateRequest(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET section_id = :section_id, period_id = :period_id, type = :type,
prior_enrollment_id = :prior_enrollment_id, notes = :notes, updated_at = :updated_at, version = version + 1
WHERE id = :id AND version = :version AND status IN ('PENDING', 'REJECTED')`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleEnrollment
	}
	enrollment.Version++
	return nil
}

// ApplyTransition locks the enrollment row, lets fn validate and mutate it, then persists
// the new state together with its history entry in one transaction.
func (r *EnrollmentRepository) ApplyTransition(ctx context.Context, id string, fn TransitionFunc) (enrollment *models.Enrollment, entry *models.EnrollmentHistoryEntry, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Enrollment
	lockQuery := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock enrollment: %w", err)
	}

	entry, err = fn(ctx, txApprovedChecker{tx: tx}, &current)
	if err != nil {
		return nil, nil, err
	}

	current.UpdatedAt = time.Now().UTC()
	const updateQuery = `UPDATE enrollments SET status = :status, review_started_at = :review_started_at,
resolved_at = :resolved_at, annulled_at = :annulled_at, reviewed_by = :reviewed_by, annulled_by = :annulled_by,
notes = :notes, rejection_reason = :rejection_reason, annulment_reason = :annulment_reason,
rejection_count = :rejection_count, updated_at = :updated_at, version = version + 1
WHERE id = :id AND version = :version`
	res, err := tx.NamedExecContext(ctx, updateQuery, &current)
	if err != nil {
		if database.IsUniqueViolation(err, approvedPerPeriodConstraint) {
			return nil, nil, ErrApprovedEnrollmentExists
		}
		return nil, nil, fmt.Errorf("update enrollment status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("update enrollment rows: %w", err)
	}
	if affected == 0 {
		return nil, nil, ErrStaleEnrollment
	}
	current.Version++

	if entry != nil {
		if err = insertHistory(ctx, tx, current.ID, entry); err != nil {
			return nil, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		if database.IsUniqueViolation(err, approvedPerPeriodConstraint) {
			return nil, nil, ErrApprovedEnrollmentExists
		}
		return nil, nil, fmt.Errorf("commit transition: %w", err)
	}
	return &current, entry, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, enrollmentID string, entry *models.EnrollmentHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.EnrollmentID = enrollmentID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_history (id, enrollment_id, from_status, to_status, actor_id, comment, created_at)
VALUES (:id, :enrollment_id, :from_status, :to_status, :actor_id, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append enrollment history: %w", err)
	}
	return nil
}

// ListHistory returns the transitions of an enrollment, oldest first unless desc is set.
func (r *EnrollmentRepository) ListHistory(ctx context.Context, enrollmentID string, desc bool) ([]models.EnrollmentHistoryEntry, error) {
	order := "ASC"
	if desc {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT id, enrollment_id, from_status, to_status, actor_id, comment, created_at
FROM enrollment_history WHERE enrollment_id = $1 ORDER BY created_at %s, id %s`, order, order)
	var entries []models.EnrollmentHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment history: %w", err)
	}
	return entries, nil
}

// CountByStatus groups the enrollments of a period by status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, periodID string) ([]models.EnrollmentStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS total FROM enrollments
WHERE period_id = $1 AND is_active = TRUE GROUP BY status ORDER BY status`
	var counts []models.EnrollmentStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, periodID); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	return counts, nil
}

// Roster lists the approved enrollments of a section ordered by student name.
func (r *EnrollmentRepository) Roster(ctx context.Context, sectionID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.code, s.full_name AS student_name, s.identification_number AS student_identification,
e.type, e.resolved_at
FROM enrollments e JOIN students s ON s.id = e.student_id
WHERE e.section_id = $1 AND e.status = 'APPROVED' AND e.is_active = TRUE
ORDER BY s.full_name`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section roster: %w", err)
	}
	return roster, nil
}
