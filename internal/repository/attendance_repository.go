package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

// AttendanceRepository persists per-session attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CountByStudentCourse counts attendance rows already recorded for a student in a course.
func (r *AttendanceRepository) CountByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE student_id = $1 AND course_id = $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, studentID, courseID); err != nil {
		return 0, fmt.Errorf("count attendance: %w", err)
	}
	return count, nil
}

// Insert writes an attendance row. It reports false when a row for the same student, course and date exists.
func (r *AttendanceRepository) Insert(ctx context.Context, exec sqlx.ExtContext, record *models.Attendance) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO attendance (id, student_id, course_id, registration_id, session_date, status, notes, recorded_by, created_at)
VALUES (:id, :student_id, :course_id, :registration_id, :session_date, :status, :notes, :recorded_by, :created_at)
ON CONFLICT (student_id, course_id, session_date) DO NOTHING`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, record)
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert attendance rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByStudentCourse returns the attendance history of a student in a course.
func (r *AttendanceRepository) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.Attendance, error) {
	const query = `SELECT id, student_id, course_id, registration_id, session_date, status, notes, recorded_by, created_at
FROM attendance WHERE student_id = $1 AND course_id = $2 ORDER BY session_date`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, studentID, courseID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
