package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/pkg/response"
)

type accountProvisioner interface {
	Provision(ctx context.Context, scope models.Scope, studentID string) (*models.Credentials, error)
}

// StudentHandler exposes student account endpoints.
type StudentHandler struct {
	accounts accountProvisioner
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(accounts accountProvisioner) *StudentHandler {
	return &StudentHandler{accounts: accounts}
}

// ProvisionAccount godoc
// @Summary Create a login for a student
// @Description The generated password is returned once and never stored in plaintext.
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/account [post]
func (h *StudentHandler) ProvisionAccount(c *gin.Context) {
	scope, err := scopeFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	creds, err := h.accounts.Provision(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, creds)
}
