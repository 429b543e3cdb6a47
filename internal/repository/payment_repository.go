package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/academy-api/internal/models"
)

const paymentColumns = `id, branch_id, entry_type, kind, amount, student_id, registration_id, workspace_booking_id,
cafeteria_order_id, category, payment_method, notes, processed_by, is_active, void_reason, voided_at, payment_date, created_at`

// PaymentRepository persists the payment journal.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create appends a journal entry.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	payment.CreatedAt = now
	payment.IsActive = true

	const query = `INSERT INTO payments (id, branch_id, entry_type, kind, amount, student_id, registration_id, workspace_booking_id,
cafeteria_order_id, category, payment_method, notes, processed_by, is_active, payment_date, created_at)
VALUES (:id, :branch_id, :entry_type, :kind, :amount, :student_id, :registration_id, :workspace_booking_id,
:cafeteria_order_id, :category, :payment_method, :notes, :processed_by, :is_active, :payment_date, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// LockByID loads a journal entry with FOR UPDATE.
func (r *PaymentRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByRegistration returns every entry attributed to a registration, voided ones included.
func (r *PaymentRepository) ListByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE registration_id = $1 ORDER BY payment_date, created_at`
	var payments []models.Payment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &payments, query, registrationID); err != nil {
		return nil, fmt.Errorf("list registration payments: %w", err)
	}
	return payments, nil
}

// SumActiveByRegistration returns the signed total of active entries for a registration.
func (r *PaymentRepository) SumActiveByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(CASE WHEN entry_type = 'REFUND' THEN -amount ELSE amount END), 0)
FROM payments WHERE registration_id = $1 AND is_active AND entry_type <> 'EXPENSE'`
	var sum decimal.Decimal
	if err := sqlx.GetContext(ctx, r.exec(exec), &sum, query, registrationID); err != nil {
		return decimal.Zero, fmt.Errorf("sum registration payments: %w", err)
	}
	return sum, nil
}

// Void flags an active entry as voided. It returns sql.ErrNoRows when the entry is already void.
func (r *PaymentRepository) Void(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error {
	const query = `UPDATE payments SET is_active = FALSE, void_reason = $2, voided_at = $3 WHERE id = $1 AND is_active`
	result, err := r.exec(exec).ExecContext(ctx, query, id, reason, at)
	if err != nil {
		return fmt.Errorf("void payment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("void payment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteByRegistration removes all entries attributed to a registration.
func (r *PaymentRepository) DeleteByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int64, error) {
	const query = `DELETE FROM payments WHERE registration_id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, registrationID)
	if err != nil {
		return 0, fmt.Errorf("delete registration payments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete payments rows affected: %w", err)
	}
	return affected, nil
}

// Aggregate groups active journal entries by kind and entry type within [from, to).
func (r *PaymentRepository) Aggregate(ctx context.Context, branchID string, from, to time.Time) ([]models.RevenueRow, error) {
	query := `SELECT kind, entry_type, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entries
FROM payments WHERE is_active AND payment_date >= $1 AND payment_date < $2`
	args := []interface{}{from, to}
	if branchID != "" {
		query += fmt.Sprintf(" AND branch_id = $%d", len(args)+1)
		args = append(args, branchID)
	}
	query += ` GROUP BY kind, entry_type ORDER BY kind, entry_type`

	var rows []models.RevenueRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate journal: %w", err)
	}
	return rows, nil
}
