// internal/circulation/domain.go
package circulation

import (
	"time"
)

// LoanCreatedEvent is recorded when a book is borrowed.
type LoanCreatedEvent struct {
	LoanID   int64     `json:"loan_id"`
	UserID   int64     `json:"user_id"`
	BookID   int64     `json:"book_id"`
	LoanDate time.Time `json:"loan_date"`
	DueDate  time.Time `json:"due_date"`
}

// LoanReturnedEvent is recorded when a loan is closed.
type LoanReturnedEvent struct {
	LoanID      int64     `json:"loan_id"`
	UserID      int64     `json:"user_id"`
	BookID      int64     `json:"book_id"`
	ReturnDate  time.Time `json:"return_date"`
	OverdueDays int       `json:"overdue_days"`
	FineAmount  int       `json:"fine_amount"`
	Clamped     bool      `json:"clamped,omitempty"`
}

// BorrowRequest is the body of POST /loans.
type BorrowRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}
