package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Certificate is issued once per student and course.
type Certificate struct {
	ID             string           `db:"id" json:"id"`
	Number         string           `db:"number" json:"number"`
	RegistrationID string           `db:"registration_id" json:"registration_id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	BranchID       string           `db:"branch_id" json:"branch_id"`
	ExamScore      *decimal.Decimal `db:"exam_score" json:"exam_score,omitempty"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	DocumentPath   *string          `db:"document_path" json:"-"`
	IssuedBy       *string          `db:"issued_by" json:"issued_by,omitempty"`
	IssuedAt       time.Time        `db:"issued_at" json:"issued_at"`
}

// IssuedCertificate pairs a certificate with its signed download link.
type IssuedCertificate struct {
	Certificate *Certificate `json:"certificate"`
	DownloadURL string       `json:"download_url"`
	ExpiresAt   time.Time    `json:"expires_at"`
}
