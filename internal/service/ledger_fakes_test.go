package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func expectCommit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func strPtr(v string) *string { return &v }

// fakeDB is an in-memory stand-in for the ledger tables. Rows are copied on the way in and out.
type fakeDB struct {
	mu            sync.Mutex
	courses       map[string]models.Course
	students      map[string]models.Student
	registrations map[string]models.CourseRegistration
	payments      []models.Payment
	attendance    []models.Attendance
	users         map[string]models.User
	certificates  map[string]models.Certificate
	audits        []models.AuditLog

	failJournalCreate error
	dropUserInserts   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		courses:       map[string]models.Course{},
		students:      map[string]models.Student{},
		registrations: map[string]models.CourseRegistration{},
		users:         map[string]models.User{},
		certificates:  map[string]models.Certificate{},
	}
}

func (db *fakeDB) addCourse(id, branchID, price string, maxStudents int) {
	db.courses[id] = models.Course{ID: id, BranchID: branchID, Name: "Course " + id, Price: dec(price), MaxStudents: maxStudents, Status: models.CourseStatusActive}
}

func (db *fakeDB) addStudent(id, branchID, name string) {
	db.students[id] = models.Student{ID: id, BranchID: branchID, FullName: name}
}

func (db *fakeDB) registration(id string) models.CourseRegistration {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.registrations[id]
}

func (db *fakeDB) entriesFor(registrationID string) []models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.Payment
	for _, p := range db.payments {
		if p.RegistrationID != nil && *p.RegistrationID == registrationID {
			out = append(out, p)
		}
	}
	return out
}

func (db *fakeDB) usersFor(studentID string) []models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.User
	for _, u := range db.users {
		if u.StudentID != nil && *u.StudentID == studentID {
			out = append(out, u)
		}
	}
	return out
}

type fakeCourses struct{ db *fakeDB }

func (f fakeCourses) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	course, ok := f.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (f fakeCourses) LockForEnrollment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeCourses) CountActiveRegistrations(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	count := 0
	for _, reg := range f.db.registrations {
		if reg.CourseID == courseID && !reg.IsCancelled() {
			count++
		}
	}
	return count, nil
}

type fakeStudents struct{ db *fakeDB }

func (f fakeStudents) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	student, ok := f.db.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (f fakeStudents) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeStudents) LinkUser(ctx context.Context, exec sqlx.ExtContext, studentID, userID string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	student, ok := f.db.students[studentID]
	if !ok || student.UserID != nil {
		return sql.ErrNoRows
	}
	student.UserID = &userID
	f.db.students[studentID] = student
	return nil
}

type fakeRegistrations struct{ db *fakeDB }

func (f fakeRegistrations) Create(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, existing := range f.db.registrations {
		if existing.StudentID == reg.StudentID && existing.CourseID == reg.CourseID && !existing.IsCancelled() {
			return &pq.Error{Code: "23505", Constraint: liveRegistrationIndex}
		}
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	reg.Version = 1
	reg.RegistrationDate = time.Now().UTC()
	f.db.registrations[reg.ID] = *reg
	return nil
}

func (f fakeRegistrations) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	reg, ok := f.db.registrations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &reg, nil
}

func (f fakeRegistrations) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseRegistration, error) {
	return f.FindByID(ctx, exec, id)
}

func (f fakeRegistrations) LockActiveByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.CourseRegistration, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, reg := range f.db.registrations {
		if reg.StudentID == studentID && reg.CourseID == courseID && !reg.IsCancelled() {
			found := reg
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeRegistrations) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	reg, err := f.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return &models.RegistrationDetail{
		CourseRegistration: *reg,
		StudentName:        f.db.students[reg.StudentID].FullName,
		CourseName:         f.db.courses[reg.CourseID].Name,
	}, nil
}

func (f fakeRegistrations) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationDetail, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.RegistrationDetail
	for _, reg := range f.db.registrations {
		if filter.BranchID != "" && reg.BranchID != filter.BranchID {
			continue
		}
		if filter.CourseID != "" && reg.CourseID != filter.CourseID {
			continue
		}
		if filter.PaymentStatus != "" && reg.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, models.RegistrationDetail{CourseRegistration: reg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f fakeRegistrations) UpdatePayment(ctx context.Context, exec sqlx.ExtContext, reg *models.CourseRegistration) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored, ok := f.db.registrations[reg.ID]
	if !ok || stored.Version != reg.Version {
		return sql.ErrNoRows
	}
	reg.Version++
	f.db.registrations[reg.ID] = *reg
	return nil
}

func (f fakeRegistrations) UpdateBillingState(ctx context.Context, exec sqlx.ExtContext, id string, state models.BillingState) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	reg := f.db.registrations[id]
	reg.BillingState = state
	f.db.registrations[id] = reg
	return nil
}

func (f fakeRegistrations) Cancel(ctx context.Context, exec sqlx.ExtContext, id string, reason *string, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	reg, ok := f.db.registrations[id]
	if !ok || reg.IsCancelled() {
		return sql.ErrNoRows
	}
	reg.PaymentStatus = models.PaymentStatusCancelled
	reg.CancelReason = reason
	reg.CancelledAt = &at
	reg.Version++
	f.db.registrations[id] = reg
	return nil
}

func (f fakeRegistrations) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.registrations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.registrations, id)
	return nil
}

type fakeJournal struct{ db *fakeDB }

func (f fakeJournal) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failJournalCreate != nil {
		return f.db.failJournalCreate
	}
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	payment.IsActive = true
	f.db.payments = append(f.db.payments, *payment)
	return nil
}

func (f fakeJournal) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, p := range f.db.payments {
		if p.ID == id {
			found := p
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeJournal) ListByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) ([]models.Payment, error) {
	return f.db.entriesFor(registrationID), nil
}

func (f fakeJournal) SumActiveByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (decimal.Decimal, error) {
	return models.JournalSum(f.db.entriesFor(registrationID)), nil
}

func (f fakeJournal) Void(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for i := range f.db.payments {
		if f.db.payments[i].ID == id && f.db.payments[i].IsActive {
			f.db.payments[i].IsActive = false
			f.db.payments[i].VoidReason = &reason
			f.db.payments[i].VoidedAt = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeJournal) DeleteByRegistration(ctx context.Context, exec sqlx.ExtContext, registrationID string) (int64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	kept := f.db.payments[:0]
	var removed int64
	for _, p := range f.db.payments {
		if p.RegistrationID != nil && *p.RegistrationID == registrationID {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	f.db.payments = kept
	return removed, nil
}

type fakeAttendance struct{ db *fakeDB }

func (f fakeAttendance) CountByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	count := 0
	for _, a := range f.db.attendance {
		if a.StudentID == studentID && a.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (f fakeAttendance) Insert(ctx context.Context, exec sqlx.ExtContext, record *models.Attendance) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.attendance {
		if a.StudentID == record.StudentID && a.CourseID == record.CourseID && a.SessionDate.Equal(record.SessionDate) {
			return false, nil
		}
	}
	record.ID = uuid.NewString()
	f.db.attendance = append(f.db.attendance, *record)
	return true, nil
}

func (f fakeAttendance) ListByStudentCourse(ctx context.Context, studentID, courseID string) ([]models.Attendance, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Attendance
	for _, a := range f.db.attendance {
		if a.StudentID == studentID && a.CourseID == courseID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeUsers struct{ db *fakeDB }

func (f fakeUsers) FindByStudentID(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.User, error) {
	users := f.db.usersFor(studentID)
	if len(users) == 0 {
		return nil, sql.ErrNoRows
	}
	return &users[0], nil
}

func (f fakeUsers) UsernameExists(ctx context.Context, exec sqlx.ExtContext, username string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, u := range f.db.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeUsers) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, user *models.User) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.dropUserInserts > 0 {
		f.db.dropUserInserts--
		return false, nil
	}
	for _, u := range f.db.users {
		if u.Username == user.Username {
			return false, nil
		}
		if u.StudentID != nil && user.StudentID != nil && *u.StudentID == *user.StudentID {
			return false, nil
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	f.db.users[user.ID] = *user
	return true, nil
}

type fakeCertificates struct{ db *fakeDB }

func (f fakeCertificates) ExistsForStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, c := range f.db.certificates {
		if c.StudentID == studentID && c.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeCertificates) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, cert *models.Certificate) (bool, error) {
	if exists, _ := f.ExistsForStudentCourse(ctx, exec, cert.StudentID, cert.CourseID); exists {
		return false, nil
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.certificates[cert.ID] = *cert
	return true, nil
}

func (f fakeCertificates) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cert, ok := f.db.certificates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &cert, nil
}

func (f fakeCertificates) SetDocumentPath(ctx context.Context, id, path string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	cert, ok := f.db.certificates[id]
	if !ok {
		return errors.New("certificate missing")
	}
	cert.DocumentPath = &path
	f.db.certificates[id] = cert
	return nil
}

type fakeAudit struct{ db *fakeDB }

func (f fakeAudit) CreateAuditLog(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.audits = append(f.db.audits, *log)
	return nil
}

func (db *fakeDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.audits))
	for _, a := range db.audits {
		out = append(out, a.Action)
	}
	return out
}

type recordingInvalidator struct {
	mu       sync.Mutex
	branches []string
}

func (r *recordingInvalidator) InvalidateBranch(branchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches = append(r.branches, branchID)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.branches...)
}

var (
	adminScope  = models.Scope{ActorID: "admin-1", Role: models.RoleAdmin, BranchID: "branch-1"}
	otherBranch = models.Scope{ActorID: "admin-2", Role: models.RoleAdmin, BranchID: "branch-2"}
	superScope  = models.Scope{ActorID: "root", Role: models.RoleSuperAdmin}
)
