package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/response"
)

type attendanceService interface {
	RecordSession(ctx context.Context, scope models.Scope, courseID string, req dto.AttendanceSessionRequest) (*models.SessionResult, error)
	History(ctx context.Context, scope models.Scope, registrationID string) ([]models.Attendance, error)
}

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// RecordSession godoc
// @Summary Record attendance for a course session
// @Description The second recorded session of an enrolled student bills the remaining course fee and provisions a login.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.AttendanceSessionRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/attendance-session [post]
func (h *AttendanceHandler) RecordSession(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.AttendanceSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.attendance.RecordSession(c.Request.Context(), scope, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Attendance history of a registration
// @Tags Attendance
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [get]
func (h *AttendanceHandler) History(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.attendance.History(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
