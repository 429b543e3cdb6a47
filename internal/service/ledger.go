package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type courseReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	LockForEnrollment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	CountActiveRegistrations(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error)
}

type studentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type registrationStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error)
	LockActiveByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.CourseRegistration, error)
	FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error)
	UpdatePayment(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error
	UpdateBillingState(ctx context.Context, exec sqlx.ExtContext, id string, state models.BillingState) error
	Cancel(ctx context.Context, exec sqlx.ExtContext, id string, reason *string, at time.Time) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type journalStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
	ListByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) ([]models.Payment, error)
	SumActiveByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (decimal.Decimal, error)
	Void(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error
	DeleteByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int64, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error
}

// RevenueInvalidator drops cached revenue summaries of a branch after its journal changed.
type RevenueInvalidator interface {
	InvalidateBranch(branchID string)
}

// balanceChange describes why a registration balance moves.
type balanceChange struct {
	Method string
	Notes  *string
	Actor  *string
	Action string
}

// ledgerWriter applies balance changes to locked registrations, keeping the journal and
// PaidAmount equal inside the caller's transaction.
type ledgerWriter struct {
	registrations registrationStore
	journal       journalStore
	audit         auditWriter
	metrics       *MetricsService
	now           func() time.Time
}

func newLedgerWriter(registrations registrationStore, journal journalStore, audit auditWriter, metrics *MetricsService) *ledgerWriter {
	return &ledgerWriter{
		registrations: registrations,
		journal:       journal,
		audit:         audit,
		metrics:       metrics,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// setPaid moves the balance to target.
func (w *ledgerWriter) setPaid(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration, target decimal.Decimal, change balanceChange) (*models.Payment, error) {
	sum, err := w.journalSum(ctx, exec, reg.ID)
	if err != nil {
		return nil, err
	}
	return w.apply(ctx, exec, reg, sum, target, change)
}

// credit adds amount on top of what the journal already holds for the registration.
func (w *ledgerWriter) credit(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration, amount decimal.Decimal, change balanceChange) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, appErrors.ErrInvalidAmount
	}
	sum, err := w.journalSum(ctx, exec, reg.ID)
	if err != nil {
		return nil, err
	}
	return w.apply(ctx, exec, reg, sum, sum.Add(amount), change)
}

func (w *ledgerWriter) journalSum(ctx context.Context, exec sqlx.ExtContext, registrationID string) (decimal.Decimal, error) {
	sum, err := w.journal.SumActiveByRegistration(ctx, exec, registrationID)
	if err != nil {
		return decimal.Zero, appErrors.Internal(err, "failed to read registration journal")
	}
	return sum, nil
}

func (w *ledgerWriter) apply(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration, journalSum, target decimal.Decimal, change balanceChange) (*models.Payment, error) {
	if reg.IsCancelled() {
		return nil, appErrors.ErrRegistrationCancelled
	}
	if target.IsNegative() {
		return nil, appErrors.ErrInvalidAmount
	}
	if target.GreaterThan(reg.TotalAmount) {
		return nil, appErrors.ErrOverpayment
	}

	method := change.Method
	if method == "" && reg.PaymentMethod != nil {
		method = *reg.PaymentMethod
	}
	if method == "" {
		method = models.PaymentMethodCash
	}

	before := *reg
	now := w.now()

	var entry *models.Payment
	if diff := target.Sub(journalSum); !diff.IsZero() {
		entryType := models.EntryTypePayment
		if diff.IsNegative() {
			entryType = models.EntryTypeRefund
		}
		studentID, registrationID := reg.StudentID, reg.ID
		entry = &models.Payment{
			BranchID:       reg.BranchID,
			EntryType:      entryType,
			Kind:           models.PaymentKindCourseFee,
			Amount:         diff.Abs(),
			StudentID:      &studentID,
			RegistrationID: &registrationID,
			PaymentMethod:  method,
			Notes:          change.Notes,
			ProcessedBy:    change.Actor,
			PaymentDate:    now,
		}
		if err := w.journal.Create(ctx, exec, entry); err != nil {
			return nil, appErrors.Internal(err, "failed to write journal entry")
		}
		reg.PaymentDate = &now
	}

	reg.SetPaid(target)
	reg.PaymentMethod = &method
	if change.Notes != nil {
		reg.Notes = change.Notes
	}
	if err := w.registrations.UpdatePayment(ctx, exec, reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrVersionConflict
		}
		return nil, appErrors.Internal(err, "failed to update registration balance")
	}

	action := change.Action
	if action == "" {
		action = models.AuditActionAdjustPayment
	}
	if err := w.audit.CreateAuditLog(ctx, exec, auditEntry(change.Actor, reg.BranchID, action, "course_registration", reg.ID, balanceView(&before), balanceView(reg))); err != nil {
		return nil, appErrors.Internal(err, "failed to write audit log")
	}
	if entry != nil {
		w.metrics.RecordLedgerEntry(entry.EntryType, entry.Kind)
	}
	return entry, nil
}

func balanceView(reg *models.CourseRegistration) map[string]interface{} {
	return map[string]interface{}{
		"paid_amount":    reg.PaidAmount.String(),
		"total_amount":   reg.TotalAmount.String(),
		"payment_status": reg.PaymentStatus,
		"version":        reg.Version,
	}
}

func auditEntry(actor *string, branchID, action, resource, resourceID string, oldValues, newValues interface{}) *models.AuditLog {
	log := &models.AuditLog{
		UserID:   actor,
		Action:   action,
		Resource: resource,
	}
	if branchID != "" {
		log.BranchID = &branchID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	return log
}

// amountLimit is the first value a NUMERIC(12, 2) column cannot store.
var amountLimit = decimal.New(1, 10)

// checkAmounts rejects amounts that would not survive storage unchanged: more than two
// decimal places, or a magnitude the amount columns cannot hold.
func checkAmounts(amounts ...decimal.Decimal) error {
	for _, amount := range amounts {
		if !amount.Equal(amount.Truncate(2)) {
			return appErrors.Clone(appErrors.ErrInvalidAmount, "amount must have at most two decimal places")
		}
		if amount.Abs().GreaterThanOrEqual(amountLimit) {
			return appErrors.Clone(appErrors.ErrInvalidAmount, "amount is too large")
		}
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// domainError reports whether err is a business-rule rejection rather than an infrastructure failure.
func domainError(err error) bool {
	var appErr *appErrors.Error
	return errors.As(err, &appErr) && appErr.Status < 500
}

func pagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func notesOrNil(notes *string) *string {
	if notes == nil || *notes == "" {
		return nil
	}
	return notes
}
