package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/database"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/export"
	"github.com/noah-isme/academy-api/pkg/storage"
)

type certificateStore interface {
	ExistsForStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error)
	InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, cert *models.Certificate) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	SetDocumentPath(ctx context.Context, id, path string) error
}

type documentStore interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
}

type certificateRenderer interface {
	RenderCertificate(doc export.CertificateDocument) ([]byte, error)
}

type urlSigner interface {
	Generate(subject, relPath string) (string, time.Time, error)
	Parse(token string) (subject, relPath string, expiresAt time.Time, err error)
}

// CertificateOptions configures certificate numbering and gating.
type CertificateOptions struct {
	NumberPrefix       string
	AcademyName        string
	RequireFullPayment bool
	DownloadPath       string
}

// CertificateService issues completion certificates and serves their documents.
type CertificateService struct {
	tx            txProvider
	registrations registrationStore
	courses       courseReader
	students      studentReader
	certificates  certificateStore
	audit         auditWriter
	documents     documentStore
	renderer      certificateRenderer
	signer        urlSigner
	opts          CertificateOptions
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewCertificateService constructs the certificate service.
func NewCertificateService(
	tx txProvider,
	registrations registrationStore,
	courses courseReader,
	students studentReader,
	certificates certificateStore,
	audit auditWriter,
	documents documentStore,
	renderer certificateRenderer,
	signer urlSigner,
	opts CertificateOptions,
	metrics *MetricsService,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "CERT"
	}
	if opts.DownloadPath == "" {
		opts.DownloadPath = "/certificates/download"
	}
	return &CertificateService{
		tx:            tx,
		registrations: registrations,
		courses:       courses,
		students:      students,
		certificates:  certificates,
		audit:         audit,
		documents:     documents,
		renderer:      renderer,
		signer:        signer,
		opts:          opts,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates the certificate for a completed course registration.
func (s *CertificateService) Issue(ctx context.Context, scope models.Scope, registrationID string, req dto.IssueCertificateRequest) (*models.IssuedCertificate, error) {
	if req.ExamScore != nil && (req.ExamScore.IsNegative() || req.ExamScore.GreaterThan(decimal.NewFromInt(100))) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "examScore must be between 0 and 100")
	}

	var cert *models.Certificate
	err := database.WithTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		reg, err := s.registrations.LockByID(ctx, tx, registrationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrRegistrationNotFound
			}
			return appErrors.Internal(err, "failed to load registration")
		}
		if !scope.Allows(reg.BranchID) {
			return appErrors.ErrRegistrationNotFound
		}
		if reg.IsCancelled() {
			return appErrors.ErrRegistrationCancelled
		}
		course, err := s.courses.FindByID(ctx, tx, reg.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrCourseNotFound
			}
			return appErrors.Internal(err, "failed to load course")
		}
		if course.Status != models.CourseStatusCompleted {
			return appErrors.ErrCourseNotCompleted
		}
		if s.opts.RequireFullPayment && reg.PaymentStatus != models.PaymentStatusFullyPaid {
			return appErrors.ErrPaymentRequired
		}
		exists, err := s.certificates.ExistsForStudentCourse(ctx, tx, reg.StudentID, reg.CourseID)
		if err != nil {
			return appErrors.Internal(err, "failed to check certificates")
		}
		if exists {
			return appErrors.ErrCertificateExists
		}

		issuedAt := s.now()
		cert = &models.Certificate{
			ID:             uuid.NewString(),
			RegistrationID: reg.ID,
			StudentID:      reg.StudentID,
			CourseID:       reg.CourseID,
			BranchID:       reg.BranchID,
			ExamScore:      req.ExamScore,
			Notes:          notesOrNil(req.Notes),
			IssuedBy:       scope.Actor(),
			IssuedAt:       issuedAt,
		}
		cert.Number = CertificateNumber(s.opts.NumberPrefix, issuedAt, cert.ID)
		inserted, err := s.certificates.InsertIfAbsent(ctx, tx, cert)
		if err != nil {
			return appErrors.Internal(err, "failed to store certificate")
		}
		if !inserted {
			return appErrors.ErrCertificateExists
		}
		return s.audit.CreateAuditLog(ctx, tx, auditEntry(scope.Actor(), reg.BranchID, models.AuditActionIssueCertificate, "certificate", cert.ID, nil,
			map[string]interface{}{"number": cert.Number, "registration_id": reg.ID}))
	})
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(cert.ID, documentName(cert))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign certificate link")
	}
	s.metrics.RecordCertificateIssued()
	s.logger.Info("certificate issued", zap.String("certificate_id", cert.ID), zap.String("number", cert.Number))
	return &models.IssuedCertificate{
		Certificate: cert,
		DownloadURL: s.opts.DownloadPath + "?token=" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Document returns the PDF behind a signed download token, rendering it on first access.
func (s *CertificateService) Document(ctx context.Context, token string) ([]byte, string, error) {
	if strings.TrimSpace(token) == "" {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "download token required")
	}
	certID, name, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	data, err := s.documents.Read(name)
	if err == nil {
		return data, name, nil
	}
	if !errors.Is(err, storage.ErrNotStored) {
		return nil, "", appErrors.Internal(err, "failed to read certificate document")
	}

	cert, err := s.certificates.FindByID(ctx, certID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, "", appErrors.Internal(err, "failed to load certificate")
	}
	if documentName(cert) != name {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link")
	}
	student, err := s.students.FindByID(ctx, nil, cert.StudentID)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to load student")
	}
	course, err := s.courses.FindByID(ctx, nil, cert.CourseID)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to load course")
	}

	doc := export.CertificateDocument{
		Number:      cert.Number,
		StudentName: student.FullName,
		CourseName:  course.Name,
		IssuedAt:    cert.IssuedAt,
		AcademyName: s.opts.AcademyName,
	}
	if course.InstructorName != nil {
		doc.Instructor = *course.InstructorName
	}
	data, err = s.renderer.RenderCertificate(doc)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to render certificate")
	}
	if _, err := s.documents.Save(name, data); err != nil {
		return nil, "", appErrors.Internal(err, "failed to store certificate document")
	}
	if err := s.certificates.SetDocumentPath(ctx, cert.ID, name); err != nil {
		s.logger.Warn("failed to record certificate document path", zap.String("certificate_id", cert.ID), zap.Error(err))
	}
	return data, name, nil
}

// CertificateNumber formats PREFIX-YYYYMMDD-XXXXXXXX from the issue date and certificate id.
func CertificateNumber(prefix string, issuedAt time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s-%s-%s", prefix, issuedAt.UTC().Format("20060102"), suffix)
}

func documentName(cert *models.Certificate) string {
	return cert.Number + ".pdf"
}
