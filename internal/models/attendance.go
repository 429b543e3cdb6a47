package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Attendance is one student's presence record for a course session, identified by calendar date.
type Attendance struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	CourseID       string           `db:"course_id" json:"course_id"`
	RegistrationID string           `db:"registration_id" json:"registration_id"`
	SessionDate    time.Time        `db:"session_date" json:"session_date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	RecordedBy     *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceConflict describes a student whose record could not be written.
type AttendanceConflict struct {
	StudentID string `json:"student_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// BillingEvent is emitted when a second session forces full payment.
type BillingEvent struct {
	RegistrationID string `json:"registration_id"`
	StudentID      string `json:"student_id"`
	PaymentID      string `json:"payment_id,omitempty"`
	Amount         string `json:"amount"`
}

// SessionResult summarizes a recorded attendance session.
type SessionResult struct {
	CourseID            string               `json:"course_id"`
	SessionDate         string               `json:"session_date"`
	Created             int                  `json:"created"`
	Billed              []BillingEvent       `json:"billed"`
	ProvisionedAccounts []Credentials        `json:"provisioned_accounts"`
	Conflicts           []AttendanceConflict `json:"conflicts"`
}
