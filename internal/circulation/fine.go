// internal/circulation/fine.go
package circulation

import (
	"time"

	"librarium/internal/domain"
)

// DaysOverdue counts whole calendar days between the due date and the return instant,
// comparing UTC dates only. Returns made on or before the due date count as zero.
func DaysOverdue(due, returnedAt time.Time) int {
	dueDay := civilDay(due)
	returnDay := civilDay(returnedAt)
	days := int(returnDay.Sub(dueDay).Hours() / 24)
	return max(days, 0)
}

// Fine is the amount charged for the given number of overdue days.
func Fine(daysOverdue int) int {
	return max(daysOverdue, 0) * domain.FinePerDay
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
