package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/database"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

const (
	generatedPasswordLength = 12
	maxUsernameAttempts     = 50
	fallbackUsername        = "student"
)

const (
	lowerChars  = "abcdefghijkmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitChars  = "23456789"
	symbolChars = "!@#$%*?-_"
)

type studentLocker interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	LinkUser(ctx context.Context, exec sqlx.ExtContext, studentID, userID string) error
}

type accountStore interface {
	FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.User, error)
	UsernameExists(ctx context.Context, exec sqlx.ExtContext, username string) (bool, error)
	InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, user *models.User) (bool, error)
}

// ProvisioningService creates student logins exactly once per student.
type ProvisioningService struct {
	tx       txProvider
	students studentLocker
	users    accountStore
	audit    auditWriter
	metrics  *MetricsService
	logger   *zap.Logger
	password func() (string, error)
}

// NewProvisioningService constructs the provisioning service.
func NewProvisioningService(tx txProvider, students studentLocker, users accountStore, audit auditWriter, metrics *MetricsService, logger *zap.Logger) *ProvisioningService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{
		tx:       tx,
		students: students,
		users:    users,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		password: generatePassword,
	}
}

// Provision creates a login for a student on explicit request.
func (s *ProvisioningService) Provision(ctx context.Context, scope models.Scope, studentID string) (*models.Credentials, error) {
	var creds *models.Credentials
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		student, err := s.students.FindByID(ctx, tx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrStudentNotFound
			}
			return appErrors.Internal(err, "failed to load student")
		}
		if !scope.Allows(student.BranchID) {
			return appErrors.ErrStudentNotFound
		}
		creds, err = s.EnsureAccount(ctx, tx, studentID, scope.Actor())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAccountProvisioned()
	s.logger.Info("student account provisioned", zap.String("student_id", creds.StudentID), zap.String("user_id", creds.UserID))
	return creds, nil
}

// EnsureAccount creates and links a login for the student inside the caller's transaction.
// It returns ACCOUNT_EXISTS when the student already has one. The plaintext password is only
// present in the returned credentials.
func (s *ProvisioningService) EnsureAccount(ctx context.Context, exec sqlx.ExtContext, studentID string, actor *string) (*models.Credentials, error) {
	student, err := s.students.LockByID(ctx, exec, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrStudentNotFound
		}
		return nil, appErrors.Internal(err, "failed to lock student")
	}
	if student.UserID != nil && *student.UserID != "" {
		return nil, appErrors.ErrAccountExists
	}
	if exists, err := s.hasAccount(ctx, exec, student.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, appErrors.ErrAccountExists
	}

	password, err := s.password()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	base := NormalizeUsername(student.FullName)
	branchID, linkedStudent := student.BranchID, student.ID
	user := &models.User{
		PasswordHash: string(hash),
		FullName:     student.FullName,
		Role:         models.RoleStudent,
		BranchID:     &branchID,
		StudentID:    &linkedStudent,
		Active:       true,
	}

	suffix := 0
	inserted := false
	for attempt := 0; attempt < maxUsernameAttempts && !inserted; attempt++ {
		username, next, err := s.nextFreeUsername(ctx, exec, base, suffix)
		if err != nil {
			return nil, err
		}
		suffix = next + 1
		user.ID = ""
		user.Username = username
		inserted, err = s.users.InsertIfAbsent(ctx, exec, user)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to create user")
		}
		if !inserted {
			// Either the username was taken concurrently or another request linked this student first.
			if exists, err := s.hasAccount(ctx, exec, student.ID); err != nil {
				return nil, err
			} else if exists {
				return nil, appErrors.ErrAccountExists
			}
		}
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique username")
	}

	if err := s.students.LinkUser(ctx, exec, student.ID, user.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrAccountExists
		}
		return nil, appErrors.Internal(err, "failed to link student account")
	}
	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, exec, auditEntry(actor, student.BranchID, models.AuditActionProvisionAccount, "user", user.ID, nil,
			map[string]interface{}{"student_id": student.ID, "username": user.Username})); err != nil {
			return nil, appErrors.Internal(err, "failed to write audit log")
		}
	}
	return &models.Credentials{
		UserID:    user.ID,
		StudentID: student.ID,
		Username:  user.Username,
		Password:  password,
	}, nil
}

func (s *ProvisioningService) hasAccount(ctx context.Context, exec sqlx.ExtContext, studentID string) (bool, error) {
	if _, err := s.users.FindByStudentID(ctx, exec, studentID); err == nil {
		return true, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return false, appErrors.Internal(err, "failed to check student account")
	}
	return false, nil
}

// nextFreeUsername returns the first candidate at or after suffix that is not taken, with the suffix used.
func (s *ProvisioningService) nextFreeUsername(ctx context.Context, exec sqlx.ExtContext, base string, suffix int) (string, int, error) {
	for i := 0; i < maxUsernameAttempts; i++ {
		candidate := usernameCandidate(base, suffix)
		taken, err := s.users.UsernameExists(ctx, exec, candidate)
		if err != nil {
			return "", 0, appErrors.Internal(err, "failed to check username")
		}
		if !taken {
			return candidate, suffix, nil
		}
		suffix++
	}
	return "", 0, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique username")
}

func usernameCandidate(base string, suffix int) string {
	if suffix == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, suffix)
}

// NormalizeUsername derives a login name from a display name: lowercase ASCII letters and digits,
// words joined by '.'. Names without any ASCII alphanumerics fall back to "student".
func NormalizeUsername(fullName string) string {
	words := strings.FieldsFunc(strings.ToLower(fullName), func(r rune) bool {
		return !isASCIIAlnum(r)
	})
	if len(words) == 0 {
		return fallbackUsername
	}
	return strings.Join(words, ".")
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// generatePassword returns a random password with at least one lowercase, uppercase, digit and symbol.
func generatePassword() (string, error) {
	classes := []string{lowerChars, upperChars, digitChars, symbolChars}
	all := strings.Join(classes, "")

	buf := make([]byte, 0, generatedPasswordLength)
	for _, class := range classes {
		c, err := randomChar(class)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for len(buf) < generatedPasswordLength {
		c, err := randomChar(all)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for i := len(buf) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		buf[i], buf[j.Int64()] = buf[j.Int64()], buf[i]
	}
	return string(buf), nil
}

func randomChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
