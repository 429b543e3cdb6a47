package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

// CertificateRepository persists issued certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ExistsForStudentCourse reports whether a certificate was already issued.
func (r *CertificateRepository) ExistsForStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM certificates WHERE student_id = $1 AND course_id = $2)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent stores a certificate unless one exists for the student and course.
func (r *CertificateRepository) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, cert *models.Certificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	const query = `INSERT INTO certificates (id, number, registration_id, student_id, course_id, branch_id, exam_score, notes, issued_by, issued_at)
VALUES (:id, :number, :registration_id, :student_id, :course_id, :branch_id, :exam_score, :notes, :issued_by, :issued_at)
ON CONFLICT (student_id, course_id) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, cert)
	if err != nil {
		return false, fmt.Errorf("insert certificate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert certificate rows affected: %w", err)
	}
	return affected == 1, nil
}

// FindByID loads a certificate.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	const query = `SELECT id, number, registration_id, student_id, course_id, branch_id, exam_score, notes, document_path, issued_by, issued_at
FROM certificates WHERE id = $1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// SetDocumentPath records where the rendered document was stored.
func (r *CertificateRepository) SetDocumentPath(ctx context.Context, id, path string) error {
	const query = `UPDATE certificates SET document_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path); err != nil {
		return fmt.Errorf("set certificate document: %w", err)
	}
	return nil
}
