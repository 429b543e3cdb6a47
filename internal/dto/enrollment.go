package dto

import "github.com/shopspring/decimal"

// EnrollRequest registers a student in a course.
type EnrollRequest struct {
	StudentID   string           `json:"studentId" validate:"required"`
	CourseID    string           `json:"courseId" validate:"required"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	PaidAmount  decimal.Decimal  `json:"paidAmount"`
	Method      string           `json:"method" validate:"omitempty,oneof=CASH CARD TRANSFER WALLET"`
	Notes       *string          `json:"notes" validate:"omitempty,max=500"`
	Pending     bool             `json:"pending"`
}

// AdjustPaymentRequest sets a registration's paid amount to an absolute value.
type AdjustPaymentRequest struct {
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Method     string          `json:"method" validate:"omitempty,oneof=CASH CARD TRANSFER WALLET"`
	Notes      *string         `json:"notes" validate:"omitempty,max=500"`
	Version    *int            `json:"version" validate:"omitempty,min=1"`
}

// CancelRegistrationRequest carries an optional cancellation reason.
type CancelRegistrationRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

// RegistrationQuery captures list filters from the query string.
type RegistrationQuery struct {
	StudentID     string `form:"studentId"`
	CourseID      string `form:"courseId"`
	PaymentStatus string `form:"paymentStatus" validate:"omitempty,oneof=PENDING UNPAID PARTIALLY_PAID FULLY_PAID CANCELLED"`
	Page          int    `form:"page"`
	PageSize      int    `form:"pageSize"`
	SortBy        string `form:"sortBy"`
	SortOrder     string `form:"sortOrder"`
}

// EnrollmentCreatedResponse is returned after a successful enrollment.
type EnrollmentCreatedResponse struct {
	RegistrationID string          `json:"registrationId"`
	PaymentStatus  string          `json:"paymentStatus"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	PaymentID      *string         `json:"paymentId,omitempty"`
}

// PaymentAdjustedResponse reports the balance after an adjustment.
type PaymentAdjustedResponse struct {
	RegistrationID  string          `json:"registrationId"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaidAmount      decimal.Decimal `json:"paidAmount"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Version         int             `json:"version"`
	EntryID         *string         `json:"entryId,omitempty"`
	EntryType       *string         `json:"entryType,omitempty"`
}
