package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/campuslink/student-portal-api/internal/models"
)

// PaymentsCSV renders payments as a CSV document for the admin export.
func PaymentsCSV(payments []models.Payment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "student_name", "roll_number", "course", "semester", "description", "amount", "currency", "status", "created_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range payments {
		record := []string{
			p.ID,
			p.StudentName,
			p.RollNumber,
			p.Course,
			p.Semester,
			p.Description,
			fmt.Sprintf("%.2f", p.Amount),
			strings.ToUpper(p.Currency),
			string(p.Status),
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
