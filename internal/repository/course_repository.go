package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

const courseColumns = `id, branch_id, name, instructor_name, price, max_students, status, start_date, end_date, created_at, updated_at`

// CourseRepository reads catalog courses. The ledger never mutates them.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// LockForEnrollment loads the course row with FOR UPDATE so capacity checks on it are serialized.
func (r *CourseRepository) LockForEnrollment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// CountActiveRegistrations counts registrations that occupy a seat.
func (r *CourseRepository) CountActiveRegistrations(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_registrations WHERE course_id = $1 AND payment_status <> $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, courseID, models.PaymentStatusCancelled); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}
