package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the financial state of a registration.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusFullyPaid     PaymentStatus = "FULLY_PAID"
	PaymentStatusCancelled     PaymentStatus = "CANCELLED"
)

// DerivePaymentStatus maps a balance to its status. It never yields Pending or Cancelled.
func DerivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusFullyPaid
	case paid.IsPositive():
		return PaymentStatusPartiallyPaid
	default:
		return PaymentStatusUnpaid
	}
}

// BillingState records how far a registration has moved through the trial-then-bill flow.
type BillingState string

const (
	BillingStateNone      BillingState = "NONE"
	BillingStateTrial     BillingState = "TRIAL"
	BillingStateCommitted BillingState = "COMMITTED"
)

// Advance returns the state after one more attendance record. COMMITTED is terminal.
func (s BillingState) Advance() BillingState {
	switch s {
	case BillingStateNone, "":
		return BillingStateTrial
	default:
		return BillingStateCommitted
	}
}

// CourseRegistration is the enrollment contract between a student and a course.
type CourseRegistration struct {
	ID               string          `db:"id" json:"id"`
	BranchID         string          `db:"branch_id" json:"branch_id"`
	StudentID        string          `db:"student_id" json:"student_id"`
	CourseID         string          `db:"course_id" json:"course_id"`
	TotalAmount      decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount       decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentMethod    *string         `db:"payment_method" json:"payment_method,omitempty"`
	PaymentDate      *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	Notes            *string         `db:"notes" json:"notes,omitempty"`
	BillingState     BillingState    `db:"billing_state" json:"billing_state"`
	Version          int             `db:"version" json:"version"`
	CancelReason     *string         `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedBy        *string         `db:"created_by" json:"created_by,omitempty"`
	RegistrationDate time.Time       `db:"registration_date" json:"registration_date"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// IsCancelled reports the sticky terminal state.
func (r *CourseRegistration) IsCancelled() bool {
	return r.PaymentStatus == PaymentStatusCancelled
}

// RemainingAmount is always TotalAmount minus PaidAmount.
func (r *CourseRegistration) RemainingAmount() decimal.Decimal {
	return r.TotalAmount.Sub(r.PaidAmount)
}

// SetPaid updates the paid amount and re-derives the status. Cancelled registrations keep their status.
func (r *CourseRegistration) SetPaid(paid decimal.Decimal) {
	r.PaidAmount = paid
	if !r.IsCancelled() {
		r.PaymentStatus = DerivePaymentStatus(paid, r.TotalAmount)
	}
}

// MarshalJSON adds the derived remaining amount.
func (r CourseRegistration) MarshalJSON() ([]byte, error) {
	type alias CourseRegistration
	return json.Marshal(struct {
		alias
		RemainingAmount decimal.Decimal `json:"remaining_amount"`
	}{alias: alias(r), RemainingAmount: r.RemainingAmount()})
}

// RegistrationDetail enriches a registration with display names.
type RegistrationDetail struct {
	CourseRegistration
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}

// MarshalJSON keeps the embedded registration fields and remaining amount alongside the names.
func (d RegistrationDetail) MarshalJSON() ([]byte, error) {
	type alias CourseRegistration
	return json.Marshal(struct {
		alias
		RemainingAmount decimal.Decimal `json:"remaining_amount"`
		StudentName     string          `json:"student_name"`
		CourseName      string          `json:"course_name"`
	}{
		alias:           alias(d.CourseRegistration),
		RemainingAmount: d.RemainingAmount(),
		StudentName:     d.StudentName,
		CourseName:      d.CourseName,
	})
}

// RegistrationFilter provides filters for listing registrations.
type RegistrationFilter struct {
	BranchID      string
	StudentID     string
	CourseID      string
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// RegistrationLedger is the reconciliation view of one registration.
type RegistrationLedger struct {
	Registration *CourseRegistration `json:"registration"`
	Entries      []Payment           `json:"entries"`
	JournalSum   decimal.Decimal     `json:"journal_sum"`
	Drift        decimal.Decimal     `json:"drift"`
	Balanced     bool                `json:"balanced"`
}
