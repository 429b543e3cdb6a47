package dto

import "github.com/shopspring/decimal"

// IssueCertificateRequest issues a completion certificate for a registration.
type IssueCertificateRequest struct {
	ExamScore *decimal.Decimal `json:"examScore"`
	Notes     *string          `json:"notes" validate:"omitempty,max=500"`
}
