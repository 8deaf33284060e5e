package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/matricula-api/internal/models"
)

// StudentRepository reads the student records enrollments refer to.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, identification_number, full_name, has_disability, representative_id, created_at, updated_at, is_active
FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}
