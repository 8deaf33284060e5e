package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/matricula-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var enrollmentRowColumns = []string{
	"id", "code", "student_id", "section_id", "period_id", "requester_id", "type", "status", "requested_at",
	"review_started_at", "resolved_at", "annulled_at", "reviewed_by", "annulled_by", "notes", "rejection_reason",
	"annulment_reason", "prior_enrollment_id", "rejection_count", "version", "created_at", "updated_at", "is_active",
}

func enrollmentRows(id string, status models.EnrollmentStatus, version int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(enrollmentRowColumns).AddRow(
		id, "MAT-7F3K2QZA", "stu-1", "sec-1", "per-1", "rep-1", string(models.EnrollmentTypeNew), string(status), now,
		nil, nil, nil, nil, nil, "", nil,
		nil, nil, 0, version, now, now, true,
	)
}

const lockPattern = `FROM enrollments WHERE id = \$1 FOR UPDATE`

func TestEnrollmentRepositoryApplyTransitionCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("enr-1").WillReturnRows(enrollmentRows("enr-1", models.EnrollmentStatusPending, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_history")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	actor := "sec-user"
	enrollment, entry, err := repo.ApplyTransition(context.Background(), "enr-1", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		current.Status = models.EnrollmentStatusUnderReview
		return &models.EnrollmentHistoryEntry{
			FromStatus: models.EnrollmentStatusPending,
			ToStatus:   models.EnrollmentStatusUnderReview,
			ActorID:    &actor,
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusUnderReview, enrollment.Status)
	assert.Equal(t, 2, enrollment.Version)
	assert.Equal(t, "enr-1", entry.EnrollmentID)
	assert.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApplyTransitionRollsBackOnPrecondition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("enr-1").WillReturnRows(enrollmentRows("enr-1", models.EnrollmentStatusRejected, 3))
	mock.ExpectRollback()

	preconditionErr := errors.New("cannot reject in the current state")
	_, _, err := repo.ApplyTransition(context.Background(), "enr-1", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		return nil, preconditionErr
	})
	require.ErrorIs(t, err, preconditionErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApplyTransitionNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("missing").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, _, err := repo.ApplyTransition(context.Background(), "missing", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		t.Fatal("transition must not run for a missing row")
		return nil, nil
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApplyTransitionChecksApprovedInsideTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("enr-2").WillReturnRows(enrollmentRows("enr-2", models.EnrollmentStatusUnderReview, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND period_id = $2 AND status = $3 AND is_active = TRUE AND id <> $4 LIMIT 1")).
		WithArgs("stu-1", "per-1", string(models.EnrollmentStatusApproved), "enr-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	duplicate := errors.New("duplicate approved")
	_, _, err := repo.ApplyTransition(context.Background(), "enr-2", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		exists, err := checker.ExistsApproved(ctx, current.StudentID, current.PeriodID, current.ID)
		require.NoError(t, err)
		require.True(t, exists)
		return nil, duplicate
	})
	require.ErrorIs(t, err, duplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApplyTransitionMapsApprovedIndexViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("enr-2").WillReturnRows(enrollmentRows("enr-2", models.EnrollmentStatusUnderReview, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_enrollments_approved_student_period"})
	mock.ExpectRollback()

	_, _, err := repo.ApplyTransition(context.Background(), "enr-2", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		current.Status = models.EnrollmentStatusApproved
		return &models.EnrollmentHistoryEntry{FromStatus: models.EnrollmentStatusUnderReview, ToStatus: models.EnrollmentStatusApproved}, nil
	})
	require.ErrorIs(t, err, ErrApprovedEnrollmentExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApplyTransitionStaleVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockPattern).WithArgs("enr-1").WillReturnRows(enrollmentRows("enr-1", models.EnrollmentStatusPending, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = ")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, _, err := repo.ApplyTransition(context.Background(), "enr-1", func(ctx context.Context, checker ApprovedChecker, current *models.Enrollment) (*models.EnrollmentHistoryEntry, error) {
		current.Status = models.EnrollmentStatusUnderReview
		return &models.EnrollmentHistoryEntry{}, nil
	})
	require.ErrorIs(t, err, ErrStaleEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "enrollments_code_key"})

	err := repo.Create(context.Background(), &models.Enrollment{Code: "MAT-AAAAAAAA", StudentID: "stu-1"})
	require.ErrorIs(t, err, ErrDuplicateEnrollmentCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{Code: "MAT-AAAAAAAA", StudentID: "stu-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, 1, enrollment.Version)
	assert.True(t, enrollment.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsApproved(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND period_id = $2 AND status = $3 AND is_active = TRUE LIMIT 1")).
		WithArgs("stu-1", "per-1", string(models.EnrollmentStatusApproved)).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsApproved(context.Background(), "stu-1", "per-1", "")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateRequestStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET section_id = ")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRequest(context.Background(), &models.Enrollment{ID: "enr-1", Version: 4})
	require.ErrorIs(t, err, ErrStaleEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListHistoryOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "from_status", "to_status", "actor_id", "comment", "created_at"}).
		AddRow("h-1", "enr-1", "PENDING", "UNDER_REVIEW", "sec-1", "", now).
		AddRow("h-2", "enr-1", "UNDER_REVIEW", "APPROVED", "sec-1", "ok", now.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollment_history WHERE enrollment_id = $1 ORDER BY created_at ASC, id ASC")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	entries, err := repo.ListHistory(context.Background(), "enr-1", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EnrollmentStatusApproved, entries[1].ToStatus)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "enrollment_id", "from_status", "to_status", "actor_id", "comment", "created_at"}))
	entries, err = repo.ListHistory(context.Background(), "enr-1", true)
	require.NoError(t, err)
	assert.Empty(t, entries)
	require.NoError(t, mock.ExpectationsWereMet())
}
