package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCertificate(t *testing.T) {
	exporter := NewPDFExporter()
	data, err := exporter.RenderCertificate(CertificateDocument{
		Number:      "CERT-20240105-1A2B3C4D",
		StudentName: "Ahmed Ali",
		CourseName:  "Intro to Go",
		Instructor:  "Sara",
		IssuedAt:    time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		AcademyName: "Academy",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRenderCertificateRequiresFields(t *testing.T) {
	_, err := NewPDFExporter().RenderCertificate(CertificateDocument{Number: "X"})
	assert.Error(t, err)
}
