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

const liveRegistrationIndex = "uq_course_registrations_live"

type certificateChecker interface {
	ExistsForStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error)
}

// EnrollmentService owns course registrations and their balances.
type EnrollmentService struct {
	tx            txProvider
	courses       courseReader
	students      studentReader
	registrations registrationStore
	journal       journalStore
	certificates  certificateChecker
	audit         auditWriter
	ledger        *ledgerWriter
	invalidator   RevenueInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewEnrollmentService constructs the enrollment ledger service.
func NewEnrollmentService(
	tx txProvider,
	courses courseReader,
	students studentReader,
	registrations registrationStore,
	journal journalStore,
	certificates certificateChecker,
	audit auditWriter,
	invalidator RevenueInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		tx:            tx,
		courses:       courses,
		students:      students,
		registrations: registrations,
		journal:       journal,
		certificates:  certificates,
		audit:         audit,
		ledger:        newLedgerWriter(registrations, journal, audit, metrics),
		invalidator:   invalidator,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
	}
}

// Enroll registers a student in a course, writing the initial payment to the journal when one is given.
func (s *EnrollmentService) Enroll(ctx context.Context, scope models.Scope, req dto.EnrollRequest) (*models.CourseRegistration, *models.Payment, error) {
	reg, entry, err := s.enroll(ctx, scope, req)
	if err != nil {
		s.metrics.RecordEnrollment(appErrors.FromError(err).Code)
		return nil, nil, err
	}
	s.metrics.RecordEnrollment("ok")
	if entry != nil {
		s.invalidate(reg.BranchID)
	}
	s.logger.Info("student enrolled",
		zap.String("registration_id", reg.ID),
		zap.String("student_id", reg.StudentID),
		zap.String("course_id", reg.CourseID),
		zap.String("status", string(reg.PaymentStatus)))
	return reg, entry, nil
}

func (s *EnrollmentService) enroll(ctx context.Context, scope models.Scope, req dto.EnrollRequest) (*models.CourseRegistration, *models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, validationError(err, "invalid enrollment payload")
	}
	if req.PaidAmount.IsNegative() || (req.TotalAmount != nil && req.TotalAmount.IsNegative()) {
		return nil, nil, appErrors.ErrInvalidAmount
	}
	if err := checkAmounts(req.PaidAmount); err != nil {
		return nil, nil, err
	}
	if req.TotalAmount != nil {
		if err := checkAmounts(*req.TotalAmount); err != nil {
			return nil, nil, err
		}
	}

	var (
		reg   *models.CourseRegistration
		entry *models.Payment
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		student, err := s.students.FindByID(ctx, tx, req.StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrStudentNotFound
			}
			return appErrors.Internal(err, "failed to load student")
		}
		if !scope.Allows(student.BranchID) {
			return appErrors.ErrStudentNotFound
		}

		course, err := s.courses.LockForEnrollment(ctx, tx, req.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrCourseNotFound
			}
			return appErrors.Internal(err, "failed to load course")
		}
		if !scope.Allows(course.BranchID) {
			return appErrors.ErrCourseNotFound
		}

		if _, err := s.registrations.LockActiveByStudentCourse(ctx, tx, student.ID, course.ID); err == nil {
			return appErrors.ErrAlreadyEnrolled
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to check existing registration")
		}

		active, err := s.courses.CountActiveRegistrations(ctx, tx, course.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to count course registrations")
		}
		if course.MaxStudents > 0 && active >= course.MaxStudents {
			return appErrors.ErrCourseFull
		}

		total := course.Price
		if req.TotalAmount != nil {
			total = *req.TotalAmount
		}
		if req.PaidAmount.GreaterThan(total) {
			return appErrors.ErrOverpayment
		}

		reg = &models.CourseRegistration{
			BranchID:      course.BranchID,
			StudentID:     student.ID,
			CourseID:      course.ID,
			TotalAmount:   total,
			PaidAmount:    req.PaidAmount,
			PaymentStatus: models.DerivePaymentStatus(req.PaidAmount, total),
			Notes:         notesOrNil(req.Notes),
			BillingState:  models.BillingStateNone,
			CreatedBy:     scope.Actor(),
		}
		if req.Pending && req.PaidAmount.IsZero() {
			reg.PaymentStatus = models.PaymentStatusPending
		}
		method := req.Method
		if method == "" {
			method = models.PaymentMethodCash
		}
		reg.PaymentMethod = &method
		if req.PaidAmount.IsPositive() {
			now := time.Now().UTC()
			reg.PaymentDate = &now
		}

		if err := s.registrations.Create(ctx, tx, reg); err != nil {
			if database.IsUniqueViolation(err, liveRegistrationIndex) {
				return appErrors.ErrAlreadyEnrolled
			}
			return appErrors.Internal(err, "failed to create registration")
		}

		if req.PaidAmount.IsPositive() {
			studentID, registrationID := reg.StudentID, reg.ID
			entry = &models.Payment{
				BranchID:       reg.BranchID,
				EntryType:      models.EntryTypePayment,
				Kind:           models.PaymentKindCourseFee,
				Amount:         req.PaidAmount,
				StudentID:      &studentID,
				RegistrationID: &registrationID,
				PaymentMethod:  method,
				Notes:          reg.Notes,
				ProcessedBy:    scope.Actor(),
				PaymentDate:    *reg.PaymentDate,
			}
			if err := s.journal.Create(ctx, tx, entry); err != nil {
				return appErrors.Internal(err, "failed to write initial payment")
			}
		}

		if err := s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), reg.BranchID, models.AuditActionEnroll, "course_registration", reg.ID, nil, balanceView(reg))); err != nil {
			return appErrors.Internal(err, "failed to write audit log")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if entry != nil {
		s.metrics.RecordLedgerEntry(entry.EntryType, entry.Kind)
	}
	return reg, entry, nil
}

// AdjustPayment sets the paid amount of a registration, writing a payment or refund entry for the difference.
func (s *EnrollmentService) AdjustPayment(ctx context.Context, scope models.Scope, id string, req dto.AdjustPaymentRequest) (*models.CourseRegistration, *models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, validationError(err, "invalid payment payload")
	}
	if req.PaidAmount.IsNegative() {
		return nil, nil, appErrors.ErrInvalidAmount
	}
	if err := checkAmounts(req.PaidAmount); err != nil {
		return nil, nil, err
	}

	var (
		reg   *models.CourseRegistration
		entry *models.Payment
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.lockRegistration(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if req.Version != nil && *req.Version != reg.Version {
			return appErrors.ErrVersionConflict
		}
		entry, err = s.ledger.setPaid(ctx, tx, reg, req.PaidAmount, balanceChange{
			Method: req.Method,
			Notes:  notesOrNil(req.Notes),
			Actor:  scope.Actor(),
			Action: models.AuditActionAdjustPayment,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if entry != nil {
		s.invalidate(reg.BranchID)
	}
	return reg, entry, nil
}

// Cancel marks a registration cancelled, freeing its seat. Journal entries are kept.
func (s *EnrollmentService) Cancel(ctx context.Context, scope models.Scope, id string, req dto.CancelRegistrationRequest) (*models.CourseRegistration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid cancellation payload")
	}
	var reg *models.CourseRegistration
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.lockRegistration(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		if reg.IsCancelled() {
			return appErrors.ErrRegistrationCancelled
		}
		before := balanceView(reg)
		now := time.Now().UTC()
		reason := notesOrNil(req.Reason)
		if err := s.registrations.Cancel(ctx, tx, reg.ID, reason, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrRegistrationCancelled
			}
			return appErrors.Internal(err, "failed to cancel registration")
		}
		reg.PaymentStatus = models.PaymentStatusCancelled
		reg.CancelReason = reason
		reg.CancelledAt = &now
		reg.Version++
		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), reg.BranchID, models.AuditActionCancel, "course_registration", reg.ID, before, balanceView(reg)))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration cancelled", zap.String("registration_id", reg.ID))
	return reg, nil
}

// Delete removes a registration together with its journal entries. Registrations with an issued
// certificate cannot be deleted.
func (s *EnrollmentService) Delete(ctx context.Context, scope models.Scope, id string) error {
	var (
		reg     *models.CourseRegistration
		removed int64
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.lockRegistration(ctx, tx, scope, id)
		if err != nil {
			return err
		}
		certified, err := s.certificates.ExistsForStudentCourse(ctx, tx, reg.StudentID, reg.CourseID)
		if err != nil {
			return appErrors.Internal(err, "failed to check certificates")
		}
		if certified {
			return appErrors.Clone(appErrors.ErrDeleteNotAllowed, "registration has an issued certificate")
		}
		if removed, err = s.journal.DeleteByRegistration(ctx, tx, reg.ID); err != nil {
			return appErrors.Internal(err, "failed to remove registration payments")
		}
		if err := s.registrations.Delete(ctx, tx, reg.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrRegistrationNotFound
			}
			return appErrors.Internal(err, "failed to delete registration")
		}
		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), reg.BranchID, models.AuditActionDelete, "course_registration", reg.ID, balanceView(reg), map[string]interface{}{"payments_removed": removed}))
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		s.invalidate(reg.BranchID)
	}
	s.logger.Info("registration deleted", zap.String("registration_id", reg.ID), zap.Int64("payments_removed", removed))
	return nil
}

// Get returns a registration with display names.
func (s *EnrollmentService) Get(ctx context.Context, scope models.Scope, id string) (*models.RegistrationDetail, error) {
	detail, err := s.registrations.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRegistrationNotFound
		}
		return nil, appErrors.Internal(err, "failed to load registration")
	}
	if !scope.Allows(detail.BranchID) {
		return nil, appErrors.ErrRegistrationNotFound
	}
	return detail, nil
}

// List returns registrations within the caller's branch.
func (s *EnrollmentService) List(ctx context.Context, scope models.Scope, query dto.RegistrationQuery) ([]models.RegistrationDetail, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, validationError(err, "invalid registration filter")
	}
	filter := models.RegistrationFilter{
		BranchID:      scope.BranchID,
		StudentID:     query.StudentID,
		CourseID:      query.CourseID,
		PaymentStatus: models.PaymentStatus(query.PaymentStatus),
		Page:          query.Page,
		PageSize:      query.PageSize,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
	}
	items, total, err := s.registrations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list registrations")
	}
	return items, pagination(filter.Page, filter.PageSize, total), nil
}

// Ledger returns a registration with its journal so the balance can be reconciled.
func (s *EnrollmentService) Ledger(ctx context.Context, scope models.Scope, id string) (*models.RegistrationLedger, error) {
	reg, err := s.registrations.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRegistrationNotFound
		}
		return nil, appErrors.Internal(err, "failed to load registration")
	}
	if !scope.Allows(reg.BranchID) {
		return nil, appErrors.ErrRegistrationNotFound
	}
	entries, err := s.journal.ListByRegistration(ctx, nil, reg.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load registration journal")
	}
	if entries == nil {
		entries = []models.Payment{}
	}
	sum := models.JournalSum(entries)
	drift := reg.PaidAmount.Sub(sum)
	return &models.RegistrationLedger{
		Registration: reg,
		Entries:      entries,
		JournalSum:   sum,
		Drift:        drift,
		Balanced:     drift.IsZero(),
	}, nil
}

func (s *EnrollmentService) lockRegistration(ctx context.Context, exec sqlx.ExtContext, scope models.Scope, id string) (*models.CourseRegistration, error) {
	reg, err := s.registrations.LockByID(ctx, exec, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRegistrationNotFound
		}
		return nil, appErrors.Internal(err, "failed to load registration")
	}
	if !scope.Allows(reg.BranchID) {
		return nil, appErrors.ErrRegistrationNotFound
	}
	return reg, nil
}

func (s *EnrollmentService) invalidate(branchID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateBranch(branchID)
	}
}
