package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-api/internal/dto"
	"github.com/noah-isme/academy-api/internal/models"
	appErrors "github.com/noah-isme/academy-api/pkg/errors"
)

type stubCertificates struct {
	issued    *models.IssuedCertificate
	document  []byte
	name      string
	err       error
	lastReg   string
	lastToken string
}

func (s *stubCertificates) Issue(_ context.Context, _ models.Scope, registrationID string, _ dto.IssueCertificateRequest) (*models.IssuedCertificate, error) {
	s.lastReg = registrationID
	return s.issued, s.err
}

func (s *stubCertificates) Document(_ context.Context, token string) ([]byte, string, error) {
	s.lastToken = token
	return s.document, s.name, s.err
}

func certificateRouter(stub *stubCertificates, claims *models.JWTClaims) *gin.Engine {
	h := NewCertificateHandler(stub)
	r := newRouter(claims)
	r.POST("/enrollments/:id/certificate", h.Issue)
	r.GET("/certificates/download", h.Download)
	return r
}

func TestCertificateHandlerIssue(t *testing.T) {
	stub := &stubCertificates{issued: &models.IssuedCertificate{
		Certificate: &models.Certificate{ID: "cert-1", Number: "CERT-20260301-ABCDEF12"},
		DownloadURL: "/certificates/download?token=abc",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	rec, env := doRequest(t, certificateRouter(stub, accountantClaims), http.MethodPost, "/enrollments/reg-1/certificate", nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "reg-1", stub.lastReg)
	var issued models.IssuedCertificate
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	assert.Equal(t, "/certificates/download?token=abc", issued.DownloadURL)
}

func TestCertificateHandlerIssueRequiresCompletion(t *testing.T) {
	stub := &stubCertificates{err: appErrors.ErrCourseNotCompleted}
	rec, env := doRequest(t, certificateRouter(stub, accountantClaims), http.MethodPost, "/enrollments/reg-1/certificate",
		map[string]interface{}{"examScore": 88})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "COURSE_NOT_COMPLETED", env.Error.Code)
}

func TestCertificateHandlerDownloadStreamsPDF(t *testing.T) {
	stub := &stubCertificates{document: []byte("%PDF-1.3 test"), name: "CERT-20260301-ABCDEF12.pdf"}
	r := certificateRouter(stub, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/download?token=signed", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="CERT-20260301-ABCDEF12.pdf"`)
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())
	assert.Equal(t, "signed", stub.lastToken)
}

func TestCertificateHandlerDownloadRejectsBadToken(t *testing.T) {
	stub := &stubCertificates{err: appErrors.ErrUnauthorized}
	rec, env := doRequest(t, certificateRouter(stub, nil), http.MethodGet, "/certificates/download?token=forged", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}
