package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/database"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

// PaymentService appends entries to the payment journal.
type PaymentService struct {
	tx            txProvider
	registrations registrationStore
	journal       journalStore
	audit         auditWriter
	ledger        *ledgerWriter
	invalidator   RevenueInvalidator
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

// NewPaymentService constructs the journal service.
func NewPaymentService(
	tx txProvider,
	registrations registrationStore,
	journal journalStore,
	audit auditWriter,
	invalidator RevenueInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		tx:            tx,
		registrations: registrations,
		journal:       journal,
		audit:         audit,
		ledger:        newLedgerWriter(registrations, journal, audit, metrics),
		invalidator:   invalidator,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RecordPayment writes one attributed payment. Course fees attributed to a registration move its balance.
func (s *PaymentService) RecordPayment(ctx context.Context, scope models.Scope, req dto.RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.ErrInvalidAmount
	}
	if err := checkAmounts(req.Amount); err != nil {
		return nil, err
	}

	entry := &models.Payment{
		EntryType:          models.EntryTypePayment,
		Kind:               models.PaymentKind(req.Kind),
		Amount:             req.Amount,
		StudentID:          nonEmpty(req.StudentID),
		RegistrationID:     nonEmpty(req.RegistrationID),
		WorkspaceBookingID: nonEmpty(req.WorkspaceBookingID),
		CafeteriaOrderID:   nonEmpty(req.CafeteriaOrderID),
		PaymentMethod:      req.Method,
		Notes:              notesOrNil(req.Notes),
		ProcessedBy:        scope.Actor(),
	}
	if entry.Attributions() != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment must reference exactly one of registration, workspace booking or cafeteria order")
	}
	if entry.RegistrationID != nil && entry.Kind != models.PaymentKindCourseFee {
		return nil, appErrors.Clone(appErrors.ErrValidation, "registration payments must be course fees")
	}
	if !entry.TargetMatchesKind() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment kind "+string(entry.Kind)+" does not match its target")
	}

	if entry.RegistrationID != nil {
		return s.recordCourseFee(ctx, scope, *entry.RegistrationID, req)
	}

	branchID, err := entryBranch(scope, req.BranchID)
	if err != nil {
		return nil, err
	}
	entry.BranchID = branchID

	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.journal.Create(ctx, tx, entry); err != nil {
			return appErrors.Internal(err, "failed to record payment")
		}
		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), entry.BranchID, models.AuditActionRecordPayment, "payment", entry.ID, nil, entry))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLedgerEntry(entry.EntryType, entry.Kind)
	s.invalidate(entry.BranchID)
	return entry, nil
}

func (s *PaymentService) recordCourseFee(ctx context.Context, scope models.Scope, registrationID string, req dto.RecordPaymentRequest) (*models.Payment, error) {
	var (
		reg   *models.CourseRegistration
		entry *models.Payment
	)
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		reg, err = s.registrations.LockByID(ctx, tx, registrationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrRegistrationNotFound
			}
			return appErrors.Internal(err, "failed to load registration")
		}
		if !scope.Allows(reg.BranchID) {
			return appErrors.ErrRegistrationNotFound
		}
		entry, err = s.ledger.credit(ctx, tx, reg, req.Amount, balanceChange{
			Method: req.Method,
			Notes:  notesOrNil(req.Notes),
			Actor:  scope.Actor(),
			Action: models.AuditActionRecordPayment,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(reg.BranchID)
	return entry, nil
}

// RecordExpense books an operating expense against a branch.
func (s *PaymentService) RecordExpense(ctx context.Context, scope models.Scope, req dto.RecordExpenseRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid expense payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.ErrInvalidAmount
	}
	if err := checkAmounts(req.Amount); err != nil {
		return nil, err
	}
	branchID, err := entryBranch(scope, req.BranchID)
	if err != nil {
		return nil, err
	}
	category := strings.TrimSpace(req.Category)
	entry := &models.Payment{
		BranchID:      branchID,
		EntryType:     models.EntryTypeExpense,
		Kind:          models.PaymentKindOther,
		Amount:        req.Amount,
		Category:      &category,
		PaymentMethod: req.Method,
		Notes:         notesOrNil(req.Notes),
		ProcessedBy:   scope.Actor(),
	}
	err = database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.journal.Create(ctx, tx, entry); err != nil {
			return appErrors.Internal(err, "failed to record expense")
		}
		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), entry.BranchID, models.AuditActionRecordExpense, "payment", entry.ID, nil, entry))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLedgerEntry(entry.EntryType, entry.Kind)
	s.invalidate(entry.BranchID)
	return entry, nil
}

// VoidPayment deactivates a journal entry. The registration balance is left untouched; the result
// carries the drift so a follow-up adjustment can reconcile it.
func (s *PaymentService) VoidPayment(ctx context.Context, scope models.Scope, id string, req dto.VoidPaymentRequest) (*models.VoidResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid void payload")
	}
	result := &models.VoidResult{}
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		entry, err := s.journal.LockByID(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrPaymentNotFound
			}
			return appErrors.Internal(err, "failed to load payment")
		}
		if !scope.Allows(entry.BranchID) {
			return appErrors.ErrPaymentNotFound
		}
		if !entry.IsActive {
			return appErrors.ErrPaymentVoided
		}

		now := s.now()
		reason := strings.TrimSpace(req.Reason)
		if err := s.journal.Void(ctx, tx, entry.ID, reason, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrPaymentVoided
			}
			return appErrors.Internal(err, "failed to void payment")
		}
		entry.IsActive = false
		entry.VoidReason = &reason
		entry.VoidedAt = &now
		result.Payment = entry

		if entry.RegistrationID != nil {
			reg, err := s.registrations.FindByID(ctx, tx, *entry.RegistrationID)
			if err != nil {
				return appErrors.Internal(err, "failed to load registration")
			}
			sum, err := s.journal.SumActiveByRegistration(ctx, tx, reg.ID)
			if err != nil {
				return appErrors.Internal(err, "failed to read registration journal")
			}
			drift := reg.PaidAmount.Sub(sum)
			result.RegistrationID = &reg.ID
			result.PaidAmount = &reg.PaidAmount
			result.JournalSum = &sum
			result.Drift = &drift
		}

		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), entry.BranchID, models.AuditActionVoidPayment, "payment", entry.ID,
			map[string]interface{}{"is_active": true},
			map[string]interface{}{"is_active": false, "void_reason": reason}))
	})
	if err != nil {
		return nil, err
	}
	if result.Drift != nil && !result.Drift.IsZero() {
		s.logger.Warn("voided payment left registration out of balance",
			zap.String("payment_id", result.Payment.ID),
			zap.String("registration_id", *result.RegistrationID),
			zap.String("drift", result.Drift.String()))
	}
	s.invalidate(result.Payment.BranchID)
	return result, nil
}

func (s *PaymentService) invalidate(branchID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateBranch(branchID)
	}
}

// entryBranch resolves the branch of an unattributed or non-course entry.
func entryBranch(scope models.Scope, requested *string) (string, error) {
	if scope.BranchID != "" {
		if requested != nil && *requested != "" && *requested != scope.BranchID {
			return "", appErrors.ErrForbidden
		}
		return scope.BranchID, nil
	}
	if requested != nil && strings.TrimSpace(*requested) != "" {
		return strings.TrimSpace(*requested), nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "branchId is required")
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
