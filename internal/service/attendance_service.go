package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/database"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

const sessionDateLayout = "2006-01-02"

type attendanceStore interface {
	CountByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (int, error)
	Insert(ctx context.Context, exec sqlx.ExtContext, record *models.Attendance) (bool, error)
	ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.Attendance, error)
}

type accountProvisioner interface {
	EnsureAccount(ctx context.Context, exec sqlx.ExtContext, studentID string, actor *string) (*models.Credentials, error)
}

// BillingPolicy configures the payment written when a second session commits a student.
type BillingPolicy struct {
	Method string
	Note   string
}

// AttendanceService records course sessions and applies the second-session billing rule.
type AttendanceService struct {
	tx            txProvider
	courses       courseReader
	registrations registrationStore
	attendance    attendanceStore
	accounts      accountProvisioner
	ledger        *ledgerWriter
	policy        BillingPolicy
	invalidator   RevenueInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	tx txProvider,
	courses courseReader,
	registrations registrationStore,
	journal journalStore,
	attendance attendanceStore,
	accounts accountProvisioner,
	audit auditWriter,
	policy BillingPolicy,
	invalidator RevenueInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Method == "" {
		policy.Method = models.PaymentMethodCash
	}
	return &AttendanceService{
		tx:            tx,
		courses:       courses,
		registrations: registrations,
		attendance:    attendance,
		accounts:      accounts,
		ledger:        newLedgerWriter(registrations, journal, audit, metrics),
		policy:        policy,
		invalidator:   invalidator,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

type sessionOutcome struct {
	billed      *models.BillingEvent
	credentials *models.Credentials
}

// RecordSession writes attendance for every entry of a session. In atomic mode any failure rolls back
// the whole session; in partialOnError mode each student commits independently and business-rule
// failures are reported as conflicts.
func (s *AttendanceService) RecordSession(ctx context.Context, scope models.Scope, courseID string, req dto.AttendanceSessionRequest) (*models.SessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid attendance payload")
	}
	sessionDate, err := time.Parse(sessionDateLayout, req.SessionDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sessionDate must be formatted as YYYY-MM-DD")
	}
	mode := models.BulkOperationMode(req.Mode)
	if mode == "" {
		mode = models.BulkModeAtomic
	}

	course, err := s.courses.FindByID(ctx, nil, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCourseNotFound
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if !scope.Allows(course.BranchID) {
		return nil, appErrors.ErrCourseNotFound
	}

	result := &models.SessionResult{
		CourseID:            course.ID,
		SessionDate:         sessionDate.Format(sessionDateLayout),
		Billed:              []models.BillingEvent{},
		ProvisionedAccounts: []models.Credentials{},
		Conflicts:           []models.AttendanceConflict{},
	}

	var outcomes []sessionOutcome
	if mode == models.BulkModeAtomic {
		err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			outcomes = outcomes[:0]
			for _, entry := range req.Entries {
				outcome, err := s.recordOne(ctx, tx, scope, course.ID, sessionDate, entry)
				if err != nil {
					return err
				}
				outcomes = append(outcomes, outcome)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		for _, entry := range req.Entries {
			var outcome sessionOutcome
			err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
				var err error
				outcome, err = s.recordOne(ctx, tx, scope, course.ID, sessionDate, entry)
				return err
			})
			if err != nil {
				if !domainError(err) {
					return nil, err
				}
				appErr := appErrors.FromError(err)
				result.Conflicts = append(result.Conflicts, models.AttendanceConflict{
					StudentID: entry.StudentID,
					Code:      appErr.Code,
					Message:   appErr.Message,
				})
				continue
			}
			outcomes = append(outcomes, outcome)
		}
	}

	result.Created = len(outcomes)
	for _, outcome := range outcomes {
		if outcome.billed != nil {
			result.Billed = append(result.Billed, *outcome.billed)
			s.metrics.RecordBillingTrigger()
		}
		if outcome.credentials != nil {
			result.ProvisionedAccounts = append(result.ProvisionedAccounts, *outcome.credentials)
			s.metrics.RecordAccountProvisioned()
		}
	}
	if len(result.Billed) > 0 && s.invalidator != nil {
		s.invalidator.InvalidateBranch(course.BranchID)
	}

	s.logger.Info("attendance session recorded",
		zap.String("course_id", course.ID),
		zap.String("session_date", result.SessionDate),
		zap.Int("created", result.Created),
		zap.Int("billed", len(result.Billed)),
		zap.Int("conflicts", len(result.Conflicts)))
	return result, nil
}

// recordOne inserts one attendance row and, when it is the student's second session, bills the
// remaining balance and provisions a login within the same transaction.
func (s *AttendanceService) recordOne(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, courseID string, sessionDate time.Time, entry dto.AttendanceEntry) (sessionOutcome, error) {
	var outcome sessionOutcome

	reg, err := s.registrations.LockActiveByStudentCourse(ctx, exec, entry.StudentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return outcome, appErrors.ErrNotEnrolled
		}
		return outcome, appErrors.Internal(err, "failed to load registration")
	}

	prior, err := s.attendance.CountByStudentCourse(ctx, exec, entry.StudentID, courseID)
	if err != nil {
		return outcome, appErrors.Internal(err, "failed to count attendance")
	}

	record := &models.Attendance{
		StudentID:      entry.StudentID,
		CourseID:       courseID,
		RegistrationID: reg.ID,
		SessionDate:    sessionDate,
		Status:         models.AttendanceStatus(entry.Status),
		Notes:          notesOrNil(entry.Notes),
		RecordedBy:     scope.Actor(),
	}
	inserted, err := s.attendance.Insert(ctx, exec, record)
	if err != nil {
		return outcome, appErrors.Internal(err, "failed to record attendance")
	}
	if !inserted {
		return outcome, appErrors.ErrDuplicateAttendance
	}

	previous := reg.BillingState
	if next := previous.Advance(); next != previous {
		if err := s.registrations.UpdateBillingState(ctx, exec, reg.ID, next); err != nil {
			return outcome, appErrors.Internal(err, "failed to update billing state")
		}
		reg.BillingState = next
	}

	if prior != 1 || previous == models.BillingStateCommitted || reg.PaymentStatus == models.PaymentStatusFullyPaid {
		return outcome, nil
	}

	note := s.policy.Note
	payment, err := s.ledger.setPaid(ctx, exec, reg, reg.TotalAmount, balanceChange{
		Method: s.policy.Method,
		Notes:  notesOrNil(&note),
		Actor:  scope.Actor(),
		Action: models.AuditActionAutoBill,
	})
	if err != nil {
		return outcome, err
	}
	event := &models.BillingEvent{
		RegistrationID: reg.ID,
		StudentID:      reg.StudentID,
		Amount:         reg.TotalAmount.String(),
	}
	if payment != nil {
		event.PaymentID = payment.ID
	}
	outcome.billed = event

	creds, err := s.accounts.EnsureAccount(ctx, exec, reg.StudentID, scope.Actor())
	if err != nil && !appErrors.HasCode(err, appErrors.ErrAccountExists.Code) {
		return outcome, err
	}
	outcome.credentials = creds
	return outcome, nil
}

// History lists the attendance recorded against a registration's student and course.
func (s *AttendanceService) History(ctx context.Context, scope models.Scope, registrationID string) ([]models.Attendance, error) {
	reg, err := s.registrations.FindByID(ctx, nil, registrationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRegistrationNotFound
		}
		return nil, appErrors.Internal(err, "failed to load registration")
	}
	if !scope.Allows(reg.BranchID) {
		return nil, appErrors.ErrRegistrationNotFound
	}
	records, err := s.attendance.ListByStudentCourse(ctx, reg.StudentID, reg.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	if records == nil {
		records = []models.Attendance{}
	}
	return records, nil
}
