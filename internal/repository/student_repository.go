package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

const studentColumns = `id, branch_id, full_name, phone, email, user_id, created_at, updated_at`

// StudentRepository provides access to student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockByID fetches a student row with FOR UPDATE.
func (r *StudentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1 FOR UPDATE`
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LinkUser sets the student's login when none is linked yet. Returns sql.ErrNoRows if already linked.
func (r *StudentRepository) LinkUser(ctx context.Context, exec sqlx.ExtContext, studentID, userID string) error {
	const query = `UPDATE students SET user_id = $2, updated_at = $3 WHERE id = $1 AND user_id IS NULL`
	result, err := r.exec(exec).ExecContext(ctx, query, studentID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link student user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link student user rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
