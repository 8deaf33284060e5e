package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/pkg/database"
)

const documentColumns = `id, enrollment_id, requirement_id, file_path, original_filename, size_bytes, mime_type, status,
observation, verified_by, verified_at, uploaded_by, created_at, updated_at, is_active`

// DocumentRepository persists submitted document metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ListByEnrollment returns every document submitted for an enrollment.
func (r *DocumentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.SubmittedDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM submitted_documents WHERE enrollment_id = $1 AND is_active = TRUE`
	var documents []models.SubmittedDocument
	if err := r.db.SelectContext(ctx, &documents, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list submitted documents: %w", err)
	}
	return documents, nil
}

// FindByID loads a submitted document.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.SubmittedDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM submitted_documents WHERE id = $1`
	var document models.SubmittedDocument
	if err := r.db.GetContext(ctx, &document, query, id); err != nil {
		return nil, err
	}
	return &document, nil
}

// ListForReview pages through submitted documents of active enrollments, most recently
// uploaded first.
func (r *DocumentRepository) ListForReview(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentQueueItem, int, error) {
	base := `FROM submitted_documents d
JOIN enrollments e ON e.id = d.enrollment_id
JOIN students s ON s.id = e.student_id
JOIN document_requirements q ON q.id = d.requirement_id`
	conditions := []string{"d.is_active = TRUE", "e.is_active = TRUE"}
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page, size := models.NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT d.*, e.code AS enrollment_code, s.full_name AS student_name, q.code AS requirement_code,
q.name AS requirement_name %s ORDER BY d.updated_at DESC, d.id LIMIT %d OFFSET %d`, base+clause, size, (page-1)*size)

	var items []models.DocumentQueueItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents for review: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents for review: %w", err)
	}
	return items, total, nil
}

// CountByStatus groups the stored documents of active enrollments by status.
func (r *DocumentRepository) CountByStatus(ctx context.Context) ([]models.DocumentStatusCount, error) {
	const query = `SELECT d.status, COUNT(*) AS total FROM submitted_documents d
JOIN enrollments e ON e.id = d.enrollment_id
WHERE d.is_active = TRUE AND e.is_active = TRUE GROUP BY d.status ORDER BY d.status`
	var counts []models.DocumentStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}
	return counts, nil
}

// Upsert stores the document for its (enrollment, requirement) pair and returns the file
// path it replaced, empty on a first upload. An existing row is locked and replaced in
// place: new file, PENDING status and review fields cleared. Replacing a VERIFIED row
// fails with ErrDocumentVerified unless replaceVerified is set.
func (r *DocumentRepository) Upsert(ctx context.Context, document *models.SubmittedDocument, replaceVerified bool) (replacedPath string, err error) {
	if document.ID == "" {
		document.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	document.AuditFields = models.NewAuditFields(now)
	document.Status = models.DocumentStatusPending
	document.Observation = ""
	document.VerifiedBy = nil
	document.VerifiedAt = nil

	err = database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		// A concurrent first upload makes this insert wait and then do nothing, so the
		// loser falls through to the locked replace below.
		const insertQuery = `INSERT INTO submitted_documents (id, enrollment_id, requirement_id, file_path, original_filename,
size_bytes, mime_type, status, observation, verified_by, verified_at, uploaded_by, created_at, updated_at, is_active)
VALUES (:id, :enrollment_id, :requirement_id, :file_path, :original_filename, :size_bytes,
:mime_type, :status, :observation, :verified_by, :verified_at, :uploaded_by, :created_at, :updated_at, :is_active)
ON CONFLICT (enrollment_id, requirement_id) DO NOTHING`
		res, err := tx.NamedExecContext(ctx, insertQuery, document)
		if err != nil {
			return fmt.Errorf("insert submitted document: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert submitted document rows: %w", err)
		}
		if inserted == 1 {
			return nil
		}

		var current struct {
			ID        string                `db:"id"`
			FilePath  string                `db:"file_path"`
			Status    models.DocumentStatus `db:"status"`
			CreatedAt time.Time             `db:"created_at"`
		}
		const lockQuery = `SELECT id, file_path, status, created_at FROM submitted_documents
WHERE enrollment_id = $1 AND requirement_id = $2 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lockQuery, document.EnrollmentID, document.RequirementID); err != nil {
			return fmt.Errorf("lock submitted document: %w", err)
		}
		if current.Status == models.DocumentStatusVerified && !replaceVerified {
			return ErrDocumentVerified
		}
		document.ID = current.ID
		document.CreatedAt = current.CreatedAt

		const replaceQuery = `UPDATE submitted_documents SET file_path = :file_path, original_filename = :original_filename,
size_bytes = :size_bytes, mime_type = :mime_type, status = :status, observation = '', verified_by = NULL,
verified_at = NULL, uploaded_by = :uploaded_by, updated_at = :updated_at, is_active = TRUE WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, replaceQuery, document); err != nil {
			return fmt.Errorf("replace submitted document: %w", err)
		}
		replacedPath = current.FilePath
		return nil
	})
	if err != nil {
		return "", err
	}
	return replacedPath, nil
}

// UpdateReview persists a verify or reject decision. The row must still be PENDING and hold
// the file that was reviewed, otherwise ErrStaleDocument is returned.
func (r *DocumentRepository) UpdateReview(ctx context.Context, document *models.SubmittedDocument) error {
	document.Touch(time.Now().UTC())
	const query = `UPDATE submitted_documents SET status = :status, observation = :observation, verified_by = :verified_by,
verified_at = :verified_at, updated_at = :updated_at
WHERE id = :id AND status = 'PENDING' AND file_path = :file_path AND is_active = TRUE`
	res, err := r.db.NamedExecContext(ctx, query, document)
	if err != nil {
		return fmt.Errorf("update document review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document review rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleDocument
	}
	return nil
}

// Delete removes a submitted document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM submitted_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete submitted document: %w", err)
	}
	return nil
}
