package dto

// AttendanceEntry is one student's status within a session.
type AttendanceEntry struct {
	StudentID string  `json:"studentId" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes     *string `json:"notes" validate:"omitempty,max=255"`
}

// AttendanceSessionRequest records one course session for many students.
type AttendanceSessionRequest struct {
	SessionDate string            `json:"sessionDate" validate:"required,datetime=2006-01-02"`
	Mode        string            `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Entries     []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}
