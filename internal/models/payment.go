package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentKind names what the money was for.
type PaymentKind string

const (
	PaymentKindCourseFee PaymentKind = "COURSE_FEE"
	PaymentKindCafeteria PaymentKind = "CAFETERIA"
	PaymentKindWorkspace PaymentKind = "WORKSPACE"
	PaymentKindEquipment PaymentKind = "EQUIPMENT"
	PaymentKindOther     PaymentKind = "OTHER"
)

// EntryType separates money in, money returned and operating costs within the journal.
type EntryType string

const (
	EntryTypePayment EntryType = "PAYMENT"
	EntryTypeRefund  EntryType = "REFUND"
	EntryTypeExpense EntryType = "EXPENSE"
)

// PaymentMethod values accepted by the journal.
const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodWallet   = "WALLET"
)

// Payment is one journal entry. Amount is always positive; EntryType carries the sign.
type Payment struct {
	ID                 string          `db:"id" json:"id"`
	BranchID           string          `db:"branch_id" json:"branch_id"`
	EntryType          EntryType       `db:"entry_type" json:"entry_type"`
	Kind               PaymentKind     `db:"kind" json:"kind"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	StudentID          *string         `db:"student_id" json:"student_id,omitempty"`
	RegistrationID     *string         `db:"registration_id" json:"registration_id,omitempty"`
	WorkspaceBookingID *string         `db:"workspace_booking_id" json:"workspace_booking_id,omitempty"`
	CafeteriaOrderID   *string         `db:"cafeteria_order_id" json:"cafeteria_order_id,omitempty"`
	Category           *string         `db:"category" json:"category,omitempty"`
	PaymentMethod      string          `db:"payment_method" json:"payment_method"`
	Notes              *string         `db:"notes" json:"notes,omitempty"`
	ProcessedBy        *string         `db:"processed_by" json:"processed_by,omitempty"`
	IsActive           bool            `db:"is_active" json:"is_active"`
	VoidReason         *string         `db:"void_reason" json:"void_reason,omitempty"`
	VoidedAt           *time.Time      `db:"voided_at" json:"voided_at,omitempty"`
	PaymentDate        time.Time       `db:"payment_date" json:"payment_date"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// Signed returns the amount as it counts toward a registration balance.
func (p *Payment) Signed() decimal.Decimal {
	if p.EntryType == EntryTypeRefund {
		return p.Amount.Neg()
	}
	return p.Amount
}

// Attributions counts how many attribution targets are set.
func (p *Payment) Attributions() int {
	n := 0
	for _, ref := range []*string{p.RegistrationID, p.WorkspaceBookingID, p.CafeteriaOrderID} {
		if ref != nil && *ref != "" {
			n++
		}
	}
	return n
}

// TargetMatchesKind reports whether the single attribution fits the kind. Course fees belong to
// registrations, workspace and cafeteria payments to their own bookings and orders; equipment and
// other sales may ride on a booking or an order but never on a registration.
func (p *Payment) TargetMatchesKind() bool {
	has := func(ref *string) bool { return ref != nil && *ref != "" }
	switch p.Kind {
	case PaymentKindCourseFee:
		return has(p.RegistrationID)
	case PaymentKindWorkspace:
		return has(p.WorkspaceBookingID)
	case PaymentKindCafeteria:
		return has(p.CafeteriaOrderID)
	default:
		return !has(p.RegistrationID)
	}
}

// JournalSum adds up the active entries of a registration with refunds subtracted.
func JournalSum(entries []Payment) decimal.Decimal {
	sum := decimal.Zero
	for i := range entries {
		if entries[i].IsActive && entries[i].EntryType != EntryTypeExpense {
			sum = sum.Add(entries[i].Signed())
		}
	}
	return sum
}

// VoidResult reports a voided entry and the balance drift it leaves behind.
type VoidResult struct {
	Payment        *Payment         `json:"payment"`
	RegistrationID *string          `json:"registration_id,omitempty"`
	PaidAmount     *decimal.Decimal `json:"paid_amount,omitempty"`
	JournalSum     *decimal.Decimal `json:"journal_sum,omitempty"`
	Drift          *decimal.Decimal `json:"drift,omitempty"`
}
