package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/campuslink/student-portal-api/internal/models"
)

// ReceiptPDF renders a single-payment receipt as a PDF document.
func ReceiptPDF(payment *models.Payment) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, "Payment Receipt", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated %s", time.Now().UTC().Format("2006-01-02 15:04 MST")), "", 1, "C", false, 0, "")
	pdf.Ln(6)
	pdf.SetTextColor(0, 0, 0)

	rows := [][2]string{
		{"Receipt No", payment.ID},
		{"Student", payment.StudentName},
		{"Roll Number", payment.RollNumber},
		{"Course", payment.Course},
		{"Semester", payment.Semester},
		{"Description", payment.Description},
		{"Amount", fmt.Sprintf("%.2f %s", payment.Amount, strings.ToUpper(payment.Currency))},
		{"Status", string(payment.Status)},
		{"Paid At", payment.CreatedAt.Format("2006-01-02 15:04")},
	}

	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(50, 9, row[0], "B", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 9, row[1], "B", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(0, 6, "This receipt is system generated and valid without a signature.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt pdf: %w", err)
	}
	return buf.Bytes(), nil
}
