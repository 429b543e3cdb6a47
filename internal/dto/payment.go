package dto

import "github.com/shopspring/decimal"

// RecordPaymentRequest appends a payment to the journal. Exactly one attribution must be set.
type RecordPaymentRequest struct {
	Kind               string          `json:"kind" validate:"required,oneof=COURSE_FEE CAFETERIA WORKSPACE EQUIPMENT OTHER"`
	Amount             decimal.Decimal `json:"amount"`
	RegistrationID     *string         `json:"registrationId"`
	WorkspaceBookingID *string         `json:"workspaceBookingId"`
	CafeteriaOrderID   *string         `json:"cafeteriaOrderId"`
	StudentID          *string         `json:"studentId"`
	BranchID           *string         `json:"branchId"`
	Method             string          `json:"method" validate:"required,oneof=CASH CARD TRANSFER WALLET"`
	Notes              *string         `json:"notes" validate:"omitempty,max=500"`
}

// RecordExpenseRequest books an operating expense.
type RecordExpenseRequest struct {
	Category string          `json:"category" validate:"required,max=100"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method" validate:"required,oneof=CASH CARD TRANSFER WALLET"`
	Notes    *string         `json:"notes" validate:"omitempty,max=500"`
	BranchID *string         `json:"branchId"`
}

// VoidPaymentRequest marks a journal entry void.
type VoidPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RevenueQuery selects the reporting period, dates formatted YYYY-MM-DD.
type RevenueQuery struct {
	From string `form:"from" validate:"required,datetime=2006-01-02"`
	To   string `form:"to" validate:"required,datetime=2006-01-02"`
}
