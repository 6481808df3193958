// internal/circulation/export.go
package circulation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"librarium/internal/domain"
)

// ExportLimit caps the number of loans written by a CSV export.
const ExportLimit = 1000

var csvHeader = []string{"loan_id", "user_id", "book_id", "loan_date", "due_date", "return_date", "fine_amount"}

// WriteCSV writes loans as CSV with a header row. Active loans have an empty return_date.
func WriteCSV(w io.Writer, loans []*domain.Loan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, l := range loans {
		returned := ""
		if l.ReturnDate != nil {
			returned = formatTime(*l.ReturnDate)
		}
		record := []string{
			strconv.FormatInt(l.ID, 10),
			strconv.FormatInt(l.UserID, 10),
			strconv.FormatInt(l.BookID, 10),
			formatTime(l.LoanDate),
			formatTime(l.DueDate),
			returned,
			strconv.Itoa(l.FineAmount),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for loan %d: %w", l.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
