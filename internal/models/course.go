package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CourseStatus tracks where a course is in its lifecycle.
type CourseStatus string

const (
	CourseStatusPlanned   CourseStatus = "PLANNED"
	CourseStatusActive    CourseStatus = "ACTIVE"
	CourseStatusCompleted CourseStatus = "COMPLETED"
	CourseStatusCancelled CourseStatus = "CANCELLED"
)

// Course is catalog data consumed read-only by the ledger.
type Course struct {
	ID             string          `db:"id" json:"id"`
	BranchID       string          `db:"branch_id" json:"branch_id"`
	Name           string          `db:"name" json:"name"`
	InstructorName *string         `db:"instructor_name" json:"instructor_name,omitempty"`
	Price          decimal.Decimal `db:"price" json:"price"`
	MaxStudents    int             `db:"max_students" json:"max_students"`
	Status         CourseStatus    `db:"status" json:"status"`
	StartDate      *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time      `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
