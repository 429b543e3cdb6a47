package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so callers can compare against the predefined values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Internal wraps an infrastructure failure behind the generic internal error code.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Ledger errors. Business-rule violations surface as 400 so the frontend can show the message as-is.
var (
	ErrCourseNotFound        = New("COURSE_NOT_FOUND", http.StatusNotFound, "course not found")
	ErrStudentNotFound       = New("STUDENT_NOT_FOUND", http.StatusNotFound, "student not found")
	ErrRegistrationNotFound  = New("REGISTRATION_NOT_FOUND", http.StatusNotFound, "registration not found")
	ErrPaymentNotFound       = New("PAYMENT_NOT_FOUND", http.StatusNotFound, "payment not found")
	ErrCourseFull            = New("COURSE_FULL", http.StatusBadRequest, "course has reached its maximum number of students")
	ErrAlreadyEnrolled       = New("ALREADY_ENROLLED", http.StatusBadRequest, "student is already enrolled in this course")
	ErrOverpayment           = New("OVERPAYMENT", http.StatusBadRequest, "paid amount cannot exceed the total amount")
	ErrInvalidAmount         = New("INVALID_AMOUNT", http.StatusBadRequest, "amount is invalid")
	ErrDuplicateAttendance   = New("DUPLICATE_ATTENDANCE", http.StatusBadRequest, "attendance already recorded for this date")
	ErrNotEnrolled           = New("NOT_ENROLLED", http.StatusBadRequest, "student is not enrolled in this course")
	ErrRegistrationCancelled = New("REGISTRATION_CANCELLED", http.StatusBadRequest, "registration is cancelled")
	ErrCertificateExists     = New("CERTIFICATE_EXISTS", http.StatusBadRequest, "certificate already issued for this course")
	ErrCourseNotCompleted    = New("COURSE_NOT_COMPLETED", http.StatusBadRequest, "course is not completed")
	ErrPaymentRequired       = New("PAYMENT_REQUIRED", http.StatusBadRequest, "registration must be fully paid")
	ErrAccountExists         = New("ACCOUNT_EXISTS", http.StatusBadRequest, "student already has an account")
	ErrDeleteNotAllowed      = New("DELETE_NOT_ALLOWED", http.StatusBadRequest, "registration cannot be deleted")
	ErrVersionConflict       = New("VERSION_CONFLICT", http.StatusConflict, "registration was modified by another request")
	ErrPaymentVoided         = New("PAYMENT_VOIDED", http.StatusBadRequest, "payment already voided")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
