package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type stubProvisioner struct {
	creds     *models.Credentials
	err       error
	lastID    string
	lastScope models.Scope
}

func (s *stubProvisioner) Provision(_ context.Context, scope models.Scope, studentID string) (*models.Credentials, error) {
	s.lastID = studentID
	s.lastScope = scope
	return s.creds, s.err
}

func TestStudentHandlerProvisionAccount(t *testing.T) {
	stub := &stubProvisioner{creds: &models.Credentials{UserID: "user-9", StudentID: "student-1", Username: "ahmed.ali", Password: "s3cret!Pass"}}
	h := NewStudentHandler(stub)
	r := newRouter(&models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin, BranchID: "branch-1"})
	r.POST("/students/:id/account", h.ProvisionAccount)

	rec, env := doRequest(t, r, http.MethodPost, "/students/student-1/account", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "student-1", stub.lastID)
	assert.Empty(t, stub.lastScope.BranchID)
	var creds models.Credentials
	require.NoError(t, json.Unmarshal(env.Data, &creds))
	assert.Equal(t, "ahmed.ali", creds.Username)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestStudentHandlerProvisionAccountExists(t *testing.T) {
	h := NewStudentHandler(&stubProvisioner{err: appErrors.ErrAccountExists})
	r := newRouter(accountantClaims)
	r.POST("/students/:id/account", h.ProvisionAccount)

	rec, env := doRequest(t, r, http.MethodPost, "/students/student-1/account", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ACCOUNT_EXISTS", env.Error.Code)
}
