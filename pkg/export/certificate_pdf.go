package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateDocument carries the printable fields of an issued certificate.
type CertificateDocument struct {
	Number      string
	StudentName string
	CourseName  string
	Instructor  string
	IssuedAt    time.Time
	AcademyName string
}

// PDFExporter renders certificates as single-page landscape PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderCertificate creates the certificate document.
func (e *PDFExporter) RenderCertificate(doc CertificateDocument) ([]byte, error) {
	if doc.Number == "" || doc.StudentName == "" || doc.CourseName == "" {
		return nil, fmt.Errorf("certificate requires number, student and course")
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, 277, 190, "D")

	if doc.AcademyName != "" {
		pdf.SetFont("Arial", "B", 16)
		pdf.CellFormat(0, 12, tr(strings.ToUpper(doc.AcademyName)), "", 1, "C", false, 0, "")
	}
	pdf.Ln(8)
	pdf.SetFont("Arial", "B", 30)
	pdf.CellFormat(0, 16, "Certificate of Completion", "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "This certifies that", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 24)
	pdf.CellFormat(0, 14, tr(doc.StudentName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 10, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, tr(doc.CourseName), "", 1, "C", false, 0, "")
	pdf.Ln(14)

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(130, 8, "Issued: "+doc.IssuedAt.Format("2006-01-02"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "No. "+doc.Number, "", 1, "R", false, 0, "")
	if doc.Instructor != "" {
		pdf.CellFormat(0, 8, tr("Instructor: "+doc.Instructor), "", 1, "L", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
