// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/inventory"
	"librarium/internal/storage"
)

// Option configures the circulation service.
type Option func(*service)

// WithClock replaces the wall clock used for loan, due and return dates.
func WithClock(clock domain.Clock) Option {
	return func(s *service) { s.clock = clock }
}

// WithMeterProvider sets where loan counters are recorded. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.meters = mp }
}

// WithRetryOptions tunes how transactions that lost a race are retried.
func WithRetryOptions(opts ...storage.RetryOption) Option {
	return func(s *service) { s.retry = append(s.retry, opts...) }
}

// service implements the Service interface.
type service struct {
	store  storage.Store
	events *eventlog.Log
	logger logrus.FieldLogger
	clock  domain.Clock
	retry  []storage.RetryOption
	tracer trace.Tracer
	meters metric.MeterProvider

	borrowed metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
	clamped  metric.Int64Counter
	retries  metric.Int64Counter
}

// NewService creates a new circulation service instance.
func NewService(store storage.Store, events *eventlog.Log, logger logrus.FieldLogger, opts ...Option) (Service, error) {
	s := &service{
		store:  store,
		events: events,
		logger: logger,
		clock:  domain.SystemClock{},
		tracer: otel.Tracer("librarium/circulation"),
		meters: otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := s.meters.Meter("librarium/circulation")
	var err error
	if s.borrowed, err = meter.Int64Counter("librarium.loans.borrowed", metric.WithDescription("Loans created")); err != nil {
		return nil, fmt.Errorf("failed to create borrowed counter: %w", err)
	}
	if s.returned, err = meter.Int64Counter("librarium.loans.returned", metric.WithDescription("Loans returned")); err != nil {
		return nil, fmt.Errorf("failed to create returned counter: %w", err)
	}
	if s.rejected, err = meter.Int64Counter("librarium.loans.rejected", metric.WithDescription("Borrow and return requests refused by policy")); err != nil {
		return nil, fmt.Errorf("failed to create rejected counter: %w", err)
	}
	if s.clamped, err = meter.Int64Counter("librarium.inventory.clamped", metric.WithDescription("Returns where available copies hit the total cap")); err != nil {
		return nil, fmt.Errorf("failed to create clamped counter: %w", err)
	}
	if s.retries, err = meter.Int64Counter("librarium.tx.retries", metric.WithDescription("Transactions retried after a conflict")); err != nil {
		return nil, fmt.Errorf("failed to create retries counter: %w", err)
	}
	return s, nil
}

// withRetry runs fn in a transaction, rerunning the whole transaction on storage conflicts.
func (s *service) withRetry(ctx context.Context, op string, fn storage.TxFunc) error {
	opts := append([]storage.RetryOption{
		storage.WithOnRetry(func(attempt int, err error) {
			s.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
			s.logger.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": attempt}).Debug("retrying transaction")
		}),
	}, s.retry...)
	return storage.Retry(ctx, func(ctx context.Context) error {
		return s.store.WithTx(ctx, fn)
	}, opts...)
}

func (s *service) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var de *domain.Error
	if errors.As(err, &de) {
		s.rejected.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("reason", de.Code),
		))
	}
	return err
}

// BorrowBook lends one copy of a book to a user.
func (s *service) BorrowBook(ctx context.Context, userID, bookID int64) (*domain.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("book.id", bookID),
	))
	defer span.End()

	var loan *domain.Loan
	err := s.withRetry(ctx, "borrow", func(ctx context.Context, tx storage.Tx) error {
		var err error
		loan, err = s.borrow(ctx, tx, userID, bookID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, "borrow", err)
	}

	s.borrowed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("loan.id", loan.ID))
	s.logger.WithFields(logrus.Fields{
		"loan_id":  loan.ID,
		"user_id":  loan.UserID,
		"book_id":  loan.BookID,
		"due_date": loan.DueDate.Format(time.RFC3339),
	}).Info("loan_created")
	return loan, nil
}

// borrow checks, in order: user exists, book exists, a copy is available, the user is under the cap.
// The user row is locked before the book row.
func (s *service) borrow(ctx context.Context, tx storage.Tx, userID, bookID int64) (*domain.Loan, error) {
	if _, err := tx.GetUserForUpdate(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", storage.NotFoundAs(err, domain.ErrUserNotFound))
	}
	book, err := tx.GetBookForUpdate(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", storage.NotFoundAs(err, domain.ErrBookNotFound))
	}
	if !inventory.CanBorrow(book) {
		return nil, domain.ErrNoAvailableCopies
	}
	active, err := tx.CountActiveLoansForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active loans: %w", err)
	}
	if active >= domain.MaxActiveLoans {
		return nil, domain.ErrMaxActiveLoansReached
	}

	now := s.clock.Now()
	if err := inventory.DecrementOnBorrow(book); err != nil {
		return nil, err
	}
	if err := tx.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	loan := &domain.Loan{
		UserID:   userID,
		BookID:   bookID,
		LoanDate: now,
		DueDate:  now.Add(domain.LoanPeriod),
	}
	if err := tx.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	if err := s.events.Record(ctx, tx, domain.AggregateLoan, loan.ID, domain.EventLoanCreated, LoanCreatedEvent{
		LoanID:   loan.ID,
		UserID:   loan.UserID,
		BookID:   loan.BookID,
		LoanDate: loan.LoanDate,
		DueDate:  loan.DueDate,
	}); err != nil {
		return nil, fmt.Errorf("failed to record loan event: %w", err)
	}
	return loan, nil
}

// ReturnLoan closes an active loan, charges any fine and puts the copy back.
func (s *service) ReturnLoan(ctx context.Context, loanID int64) (*domain.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return", trace.WithAttributes(
		attribute.Int64("loan.id", loanID),
	))
	defer span.End()

	var (
		loan        *domain.Loan
		overdueDays int
		clamped     bool
	)
	err := s.withRetry(ctx, "return", func(ctx context.Context, tx storage.Tx) error {
		var err error
		loan, overdueDays, clamped, err = s.returnLoan(ctx, tx, loanID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, span, "return", err)
	}

	s.returned.Add(ctx, 1)
	fields := logrus.Fields{
		"loan_id":      loan.ID,
		"user_id":      loan.UserID,
		"book_id":      loan.BookID,
		"overdue_days": overdueDays,
		"fine":         loan.FineAmount,
	}
	if clamped {
		s.clamped.Add(ctx, 1)
		s.logger.WithFields(fields).Warn("available copies already at total on return, clamped")
	}
	s.logger.WithFields(fields).Info("loan_returned")
	return loan, nil
}

// returnLoan locks the loan row before the book row.
func (s *service) returnLoan(ctx context.Context, tx storage.Tx, loanID int64) (*domain.Loan, int, bool, error) {
	loan, err := tx.GetLoanForUpdate(ctx, loanID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to get loan: %w", storage.NotFoundAs(err, domain.ErrLoanNotFound))
	}
	if !loan.Active() {
		return nil, 0, false, domain.ErrAlreadyReturned
	}
	book, err := tx.GetBookForUpdate(ctx, loan.BookID)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to get book: %w", storage.NotFoundAs(err, domain.ErrBookNotFound))
	}

	now := s.clock.Now()
	overdueDays := DaysOverdue(loan.DueDate, now)
	loan.ReturnDate = &now
	loan.FineAmount = Fine(overdueDays)
	if err := tx.UpdateLoan(ctx, loan); err != nil {
		return nil, 0, false, fmt.Errorf("failed to update loan: %w", err)
	}

	clamped := inventory.IncrementOnReturn(book)
	if err := tx.UpdateBook(ctx, book); err != nil {
		return nil, 0, false, fmt.Errorf("failed to update book: %w", err)
	}

	if err := s.events.Record(ctx, tx, domain.AggregateLoan, loan.ID, domain.EventLoanReturned, LoanReturnedEvent{
		LoanID:      loan.ID,
		UserID:      loan.UserID,
		BookID:      loan.BookID,
		ReturnDate:  now,
		OverdueDays: overdueDays,
		FineAmount:  loan.FineAmount,
		Clamped:     clamped,
	}); err != nil {
		return nil, 0, false, fmt.Errorf("failed to record loan event: %w", err)
	}
	return loan, overdueDays, clamped, nil
}

// GetLoan returns a single loan.
func (s *service) GetLoan(ctx context.Context, loanID int64) (*domain.Loan, error) {
	var loan *domain.Loan
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		loan, err = tx.GetLoan(ctx, loanID)
		if err != nil {
			return fmt.Errorf("failed to get loan: %w", storage.NotFoundAs(err, domain.ErrLoanNotFound))
		}
		return nil
	})
	return loan, err
}

// ListLoans returns loans newest first. Overdue is evaluated against the current instant.
func (s *service) ListLoans(ctx context.Context, status domain.LoanStatus, page storage.Page) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx, storage.LoanFilter{Status: status, Now: s.clock.Now()}, page)
		if err != nil {
			return fmt.Errorf("failed to list loans: %w", err)
		}
		return nil
	})
	return loans, err
}

// ListUserLoans returns a user's loans newest first. A nil activeOnly returns every loan,
// true only active ones and false only closed ones.
func (s *service) ListUserLoans(ctx context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error) {
	var loans []*domain.Loan
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to get user: %w", storage.NotFoundAs(err, domain.ErrUserNotFound))
		}
		var err error
		loans, err = tx.ListUserLoans(ctx, userID, activeOnly)
		if err != nil {
			return fmt.Errorf("failed to list user loans: %w", err)
		}
		return nil
	})
	return loans, err
}

// ActiveLoanCountForUser counts the user's loans that are not returned yet.
func (s *service) ActiveLoanCountForUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		n, err = tx.CountActiveLoansForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to count active loans: %w", err)
		}
		return nil
	})
	return n, err
}

// LoanHistory returns the audit events of a loan, oldest first.
func (s *service) LoanHistory(ctx context.Context, loanID int64) ([]domain.Event, error) {
	var events []domain.Event
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.GetLoan(ctx, loanID); err != nil {
			return fmt.Errorf("failed to get loan: %w", storage.NotFoundAs(err, domain.ErrLoanNotFound))
		}
		var err error
		events, err = s.events.History(ctx, tx, domain.AggregateLoan, loanID)
		return err
	})
	return events, err
}

// ExportLoans writes the most recent loans as CSV.
func (s *service) ExportLoans(ctx context.Context, w io.Writer) error {
	var loans []*domain.Loan
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		loans, err = tx.ListLoans(ctx,
			storage.LoanFilter{Status: domain.LoanStatusAll, Now: s.clock.Now()},
			storage.Page{Offset: 0, Limit: ExportLimit},
		)
		if err != nil {
			return fmt.Errorf("failed to list loans: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return WriteCSV(w, loans)
}
