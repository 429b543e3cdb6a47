package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type stubAttendance struct {
	result     *models.SessionResult
	err        error
	lastCourse string
	lastReq    dto.AttendanceSessionRequest
}

func (s *stubAttendance) RecordSession(_ context.Context, _ models.Scope, courseID string, req dto.AttendanceSessionRequest) (*models.SessionResult, error) {
	s.lastCourse = courseID
	s.lastReq = req
	return s.result, s.err
}

func (s *stubAttendance) History(context.Context, models.Scope, string) ([]models.Attendance, error) {
	return []models.Attendance{{ID: "att-1", Status: models.AttendanceStatus("PRESENT")}}, s.err
}

func TestAttendanceHandlerRecordSession(t *testing.T) {
	stub := &stubAttendance{result: &models.SessionResult{CourseID: "course-1", SessionDate: "2026-03-02", Created: 2}}
	h := NewAttendanceHandler(stub)
	r := newRouter(&models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor, BranchID: "branch-1"})
	r.POST("/courses/:id/attendance-session", h.RecordSession)

	rec, env := doRequest(t, r, http.MethodPost, "/courses/course-1/attendance-session", map[string]interface{}{
		"sessionDate": "2026-03-02",
		"mode":        "partialOnError",
		"entries": []map[string]interface{}{
			{"studentId": "student-1", "status": "PRESENT"},
			{"studentId": "student-2", "status": "LATE"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "course-1", stub.lastCourse)
	assert.Equal(t, "partialOnError", stub.lastReq.Mode)
	require.Len(t, stub.lastReq.Entries, 2)
	var result models.SessionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Created)
}

func TestAttendanceHandlerDuplicate(t *testing.T) {
	h := NewAttendanceHandler(&stubAttendance{err: appErrors.ErrDuplicateAttendance})
	r := newRouter(accountantClaims)
	r.POST("/courses/:id/attendance-session", h.RecordSession)

	rec, env := doRequest(t, r, http.MethodPost, "/courses/course-1/attendance-session", map[string]interface{}{
		"sessionDate": "2026-03-02",
		"entries":     []map[string]interface{}{{"studentId": "student-1", "status": "PRESENT"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "DUPLICATE_ATTENDANCE", env.Error.Code)
}

type stubPayments struct {
	payment *models.Payment
	void    *models.VoidResult
	err     error
	lastReq dto.RecordPaymentRequest
	lastExp dto.RecordExpenseRequest
	lastID  string
}

func (s *stubPayments) RecordPayment(_ context.Context, _ models.Scope, req dto.RecordPaymentRequest) (*models.Payment, error) {
	s.lastReq = req
	return s.payment, s.err
}

func (s *stubPayments) RecordExpense(_ context.Context, _ models.Scope, req dto.RecordExpenseRequest) (*models.Payment, error) {
	s.lastExp = req
	return s.payment, s.err
}

func (s *stubPayments) VoidPayment(_ context.Context, _ models.Scope, id string, _ dto.VoidPaymentRequest) (*models.VoidResult, error) {
	s.lastID = id
	return s.void, s.err
}

func paymentRouter(stub *stubPayments) http.Handler {
	h := NewPaymentHandler(stub)
	r := newRouter(accountantClaims)
	r.POST("/payments", h.Create)
	r.POST("/payments/:id/void", h.Void)
	r.POST("/expenses", h.CreateExpense)
	return r
}

func TestPaymentHandlerCreate(t *testing.T) {
	stub := &stubPayments{payment: &models.Payment{ID: "pay-1", EntryType: models.EntryTypePayment, Amount: decimal.NewFromInt(50)}}
	rec, env := doRequest(t, paymentRouter(stub), http.MethodPost, "/payments", map[string]interface{}{
		"kind":             "CAFETERIA",
		"amount":           "50",
		"cafeteriaOrderId": "order-7",
		"method":           "CASH",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stub.lastReq.CafeteriaOrderID)
	assert.Equal(t, "order-7", *stub.lastReq.CafeteriaOrderID)
	assert.True(t, stub.lastReq.Amount.Equal(decimal.NewFromInt(50)))
	var payment models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &payment))
	assert.Equal(t, "pay-1", payment.ID)
}

func TestPaymentHandlerVoid(t *testing.T) {
	drift := decimal.Zero
	stub := &stubPayments{void: &models.VoidResult{Payment: &models.Payment{ID: "pay-1"}, Drift: &drift}}
	rec, _ := doRequest(t, paymentRouter(stub), http.MethodPost, "/payments/pay-1/void", map[string]interface{}{"reason": "typo"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay-1", stub.lastID)

	voided := &stubPayments{err: appErrors.ErrPaymentVoided}
	rec, env := doRequest(t, paymentRouter(voided), http.MethodPost, "/payments/pay-1/void", map[string]interface{}{"reason": "again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PAYMENT_VOIDED", env.Error.Code)
}

func TestPaymentHandlerExpenseHidesInternalErrors(t *testing.T) {
	stub := &stubPayments{err: errors.New("pq: connection reset")}
	rec, env := doRequest(t, paymentRouter(stub), http.MethodPost, "/expenses", map[string]interface{}{
		"category": "rent",
		"amount":   "900",
		"method":   "TRANSFER",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Equal(t, "rent", stub.lastExp.Category)
}
