package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-api/internal/models"
)

const registrationColumns = `id, branch_id, student_id, course_id, total_amount, paid_amount, payment_status, payment_method,
payment_date, notes, billing_state, version, cancel_reason, cancelled_at, created_by, registration_date, updated_at`

// RegistrationRepository persists course registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func (r *RegistrationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new registration. The partial unique index on live (student, course) pairs rejects duplicates.
func (r *RegistrationRepository) Create(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reg.RegistrationDate.IsZero() {
		reg.RegistrationDate = now
	}
	reg.UpdatedAt = now
	if reg.BillingState == "" {
		reg.BillingState = models.BillingStateNone
	}
	if reg.Version == 0 {
		reg.Version = 1
	}

	const query = `INSERT INTO course_registrations (id, branch_id, student_id, course_id, total_amount, paid_amount, payment_status,
payment_method, payment_date, notes, billing_state, version, created_by, registration_date, updated_at)
VALUES (:id, :branch_id, :student_id, :course_id, :total_amount, :paid_amount, :payment_status,
:payment_method, :payment_date, :notes, :billing_state, :version, :created_by, :registration_date, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, reg); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM course_registrations WHERE id = $1`
	var reg models.CourseRegistration
	if err := sqlx.GetContext(ctx, r.exec(exec), &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LockByID loads a registration with FOR UPDATE.
func (r *RegistrationRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM course_registrations WHERE id = $1 FOR UPDATE`
	var reg models.CourseRegistration
	if err := sqlx.GetContext(ctx, r.exec(exec), &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// LockActiveByStudentCourse loads the live registration of a student in a course with FOR UPDATE.
func (r *RegistrationRepository) LockActiveByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.CourseRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM course_registrations
WHERE student_id = $1 AND course_id = $2 AND payment_status <> $3 FOR UPDATE`
	var reg models.CourseRegistration
	if err := sqlx.GetContext(ctx, r.exec(exec), &reg, query, studentID, courseID, models.PaymentStatusCancelled); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindDetailByID returns a registration with student and course names.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	const query = `SELECT cr.id, cr.branch_id, cr.student_id, cr.course_id, cr.total_amount, cr.paid_amount, cr.payment_status,
cr.payment_method, cr.payment_date, cr.notes, cr.billing_state, cr.version, cr.cancel_reason, cr.cancelled_at, cr.created_by,
cr.registration_date, cr.updated_at, s.full_name AS student_name, c.name AS course_name
FROM course_registrations cr
JOIN students s ON s.id = cr.student_id
JOIN courses c ON c.id = cr.course_id
WHERE cr.id = $1`
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns registrations filtered by the provided criteria.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	base := `FROM course_registrations cr
JOIN students s ON s.id = cr.student_id
JOIN courses c ON c.id = cr.course_id`
	var conditions []string
	var args []interface{}

	if filter.BranchID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.branch_id = $%d", len(args)+1))
		args = append(args, filter.BranchID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cr.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.PaymentStatus != "" {
		conditions = append(conditions, fmt.Sprintf("cr.payment_status = $%d", len(args)+1))
		args = append(args, filter.PaymentStatus)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"registration_date": "cr.registration_date",
		"student_name":      "s.full_name",
		"course_name":       "c.name",
		"paid_amount":       "cr.paid_amount",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "cr.registration_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT cr.id, cr.branch_id, cr.student_id, cr.course_id, cr.total_amount, cr.paid_amount, cr.payment_status,
cr.payment_method, cr.payment_date, cr.notes, cr.billing_state, cr.version, cr.cancel_reason, cr.cancelled_at, cr.created_by,
cr.registration_date, cr.updated_at, s.full_name AS student_name, c.name AS course_name
%s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var registrations []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &registrations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return registrations, total, nil
}

// UpdatePayment writes the balance fields and bumps the version. It returns sql.ErrNoRows when the
// stored version no longer matches reg.Version.
func (r *RegistrationRepository) UpdatePayment(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error {
	reg.UpdatedAt = time.Now().UTC()
	const query = `UPDATE course_registrations
SET paid_amount = $1, payment_status = $2, payment_method = $3, payment_date = $4, notes = $5,
    version = version + 1, updated_at = $6
WHERE id = $7 AND version = $8`
	result, err := r.exec(exec).ExecContext(ctx, query,
		reg.PaidAmount, reg.PaymentStatus, reg.PaymentMethod, reg.PaymentDate, reg.Notes,
		reg.UpdatedAt, reg.ID, reg.Version)
	if err != nil {
		return fmt.Errorf("update registration payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	reg.Version++
	return nil
}

// UpdateBillingState persists the attendance billing state.
func (r *RegistrationRepository) UpdateBillingState(ctx context.Context, exec sqlx.ExtContext, id string, state models.BillingState) error {
	const query = `UPDATE course_registrations SET billing_state = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, state, time.Now().UTC()); err != nil {
		return fmt.Errorf("update billing state: %w", err)
	}
	return nil
}

// Cancel marks the registration cancelled. Payments are left untouched.
func (r *RegistrationRepository) Cancel(ctx context.Context, exec sqlx.ExtContext, id string, reason *string, at time.Time) error {
	const query = `UPDATE course_registrations
SET payment_status = $2, cancel_reason = $3, cancelled_at = $4, version = version + 1, updated_at = $4
WHERE id = $1 AND payment_status <> $2`
	result, err := r.exec(exec).ExecContext(ctx, query, id, models.PaymentStatusCancelled, reason, at)
	if err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a registration row. Journal entries must be removed first.
func (r *RegistrationRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM course_registrations WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete registration rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
