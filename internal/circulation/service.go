// internal/circulation/service.go
package circulation

import (
	"context"
	"io"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

// Service defines the loan lifecycle: borrowing, returning and loan queries.
type Service interface {
	BorrowBook(ctx context.Context, userID, bookID int64) (*domain.Loan, error)
	ReturnLoan(ctx context.Context, loanID int64) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID int64) (*domain.Loan, error)
	ListLoans(ctx context.Context, status domain.LoanStatus, page storage.Page) ([]*domain.Loan, error)
	ListUserLoans(ctx context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error)
	ActiveLoanCountForUser(ctx context.Context, userID int64) (int, error)
	LoanHistory(ctx context.Context, loanID int64) ([]domain.Event, error)
	ExportLoans(ctx context.Context, w io.Writer) error
}
