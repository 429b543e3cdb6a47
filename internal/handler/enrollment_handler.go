package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, scope models.Scope, req dto.EnrollRequest) (*models.CourseRegistration, *models.Payment, error)
	AdjustPayment(ctx context.Context, scope models.Scope, id string, req dto.AdjustPaymentRequest) (*models.CourseRegistration, *models.Payment, error)
	Cancel(ctx context.Context, scope models.Scope, id string, req dto.CancelRegistrationRequest) (*models.CourseRegistration, error)
	Delete(ctx context.Context, scope models.Scope, id string) error
	Get(ctx context.Context, scope models.Scope, id string) (*models.RegistrationDetail, error)
	List(ctx context.Context, scope models.Scope, query dto.RegistrationQuery) ([]models.RegistrationDetail, *models.Pagination, error)
	Ledger(ctx context.Context, scope models.Scope, id string) (*models.RegistrationLedger, error)
}

// EnrollmentHandler exposes course registration endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List course registrations
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param courseId query string false "Filter by course"
// @Param paymentStatus query string false "Filter by payment status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.RegistrationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), scope, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a course registration
// @Tags Enrollments
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	detail, err := h.enrollments.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Ledger godoc
// @Summary Registration journal and balance check
// @Tags Enrollments
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/ledger [get]
func (h *EnrollmentHandler) Ledger(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ledger, err := h.enrollments.Ledger(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// Create godoc
// @Summary Enroll a student in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	reg, entry, err := h.enrollments.Enroll(c.Request.Context(), scope, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.EnrollmentCreatedResponse{
		RegistrationID: reg.ID,
		PaymentStatus:  string(reg.PaymentStatus),
		TotalAmount:    reg.TotalAmount,
		PaidAmount:     reg.PaidAmount,
	}
	if entry != nil {
		resp.PaymentID = &entry.ID
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// AdjustPayment godoc
// @Summary Set the paid amount of a registration
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.AdjustPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/payment [put]
func (h *EnrollmentHandler) AdjustPayment(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AdjustPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	reg, entry, err := h.enrollments.AdjustPayment(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.PaymentAdjustedResponse{
		RegistrationID:  reg.ID,
		PaymentStatus:   string(reg.PaymentStatus),
		PaidAmount:      reg.PaidAmount,
		RemainingAmount: reg.RemainingAmount(),
		Version:         reg.Version,
	}
	if entry != nil {
		entryType := string(entry.EntryType)
		resp.EntryID = &entry.ID
		resp.EntryType = &entryType
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Cancel godoc
// @Summary Cancel a registration
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.CancelRegistrationRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CancelRegistrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, invalidPayload(err))
			return
		}
	}
	reg, err := h.enrollments.Cancel(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reg, nil)
}

// Delete godoc
// @Summary Delete a registration and its payments
// @Tags Enrollments
// @Produce json
// @Param id path string true "Registration ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.enrollments.Delete(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
