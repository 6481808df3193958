// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"time"

	"librarium/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("storage: duplicate key")
	// ErrConflict is returned when the transaction lost a race and may be retried from scratch.
	ErrConflict = errors.New("storage: transaction conflict")
)

// TxFunc is the body of a transaction. Returning an error rolls the transaction back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store opens transaction scopes. The scope is released on every exit path: commit when fn
// returns nil, rollback otherwise.
type Store interface {
	WithTx(ctx context.Context, fn TxFunc) error
	ReadOnly(ctx context.Context, fn TxFunc) error
}

// LoanFilter narrows a loan listing. Now is the instant overdue is evaluated against.
type LoanFilter struct {
	Status domain.LoanStatus
	Now    time.Time
}

// Tx is the set of entity operations available inside a transaction scope.
// The ForUpdate variants lock the row until the transaction ends.
type Tx interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context, page Page) ([]*domain.User, error)

	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	GetBookForUpdate(ctx context.Context, id int64) (*domain.Book, error)
	CreateBook(ctx context.Context, book *domain.Book) error
	UpdateBook(ctx context.Context, book *domain.Book) error
	ListBooks(ctx context.Context, page Page) ([]*domain.Book, error)
	ListBookStock(ctx context.Context) ([]*domain.BookStock, error)

	GetLoan(ctx context.Context, id int64) (*domain.Loan, error)
	GetLoanForUpdate(ctx context.Context, id int64) (*domain.Loan, error)
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	UpdateLoan(ctx context.Context, loan *domain.Loan) error
	CountActiveLoansForUser(ctx context.Context, userID int64) (int, error)
	ListLoans(ctx context.Context, filter LoanFilter, page Page) ([]*domain.Loan, error)
	ListUserLoans(ctx context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error)

	AppendEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context, aggregateType string, aggregateID int64) ([]domain.Event, error)
}

// NotFoundAs replaces ErrNotFound with target so callers see the domain error for the
// entity they looked up. Other errors pass through unchanged.
func NotFoundAs(err, target error) error {
	if errors.Is(err, ErrNotFound) {
		return target
	}
	return err
}
