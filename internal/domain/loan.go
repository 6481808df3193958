// internal/domain/loan.go
package domain

import (
	"fmt"
	"time"
)

const (
	// LoanPeriod is the fixed time between loan_date and due_date.
	LoanPeriod = 14 * 24 * time.Hour
	// MaxActiveLoans caps the loans a single user may hold at once.
	MaxActiveLoans = 3
	// FinePerDay is charged for every calendar day a loan is overdue.
	FinePerDay = 2
)

// Loan represents one copy of a book lent to a user.
type Loan struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	BookID     int64      `json:"book_id" db:"book_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date" db:"return_date"`
	FineAmount int        `json:"fine_amount" db:"fine_amount"`
}

// Active reports whether the loan has not been returned yet.
func (l *Loan) Active() bool {
	return l.ReturnDate == nil
}

// Overdue reports whether the loan is active and past its due date at now.
func (l *Loan) Overdue(now time.Time) bool {
	return l.Active() && l.DueDate.Before(now)
}

// LoanStatus is the derived status used to filter loan listings.
type LoanStatus string

const (
	LoanStatusAll     LoanStatus = "all"
	LoanStatusActive  LoanStatus = "active"
	LoanStatusOverdue LoanStatus = "overdue"
)

// ParseLoanStatus maps a query value to a LoanStatus. An empty value means all.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch LoanStatus(s) {
	case "", LoanStatusAll:
		return LoanStatusAll, nil
	case LoanStatusActive, LoanStatusOverdue:
		return LoanStatus(s), nil
	}
	return "", InvalidArgument(fmt.Sprintf("unknown loan status %q", s))
}
