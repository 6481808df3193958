// internal/storage/postgres/loans.go
package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

const tableLoans = "loans"

var loanColumns = []any{"id", "user_id", "book_id", "loan_date", "due_date", "return_date", "fine_amount"}

func (t *tx) GetLoan(ctx context.Context, id int64) (*domain.Loan, error) {
	var l domain.Loan
	ds := dialect.From(tableLoans).Select(loanColumns...).Where(goqu.C("id").Eq(id))
	if err := t.get(ctx, &l, ds); err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *tx) GetLoanForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	var l domain.Loan
	ds := dialect.From(tableLoans).Select(loanColumns...).Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait)
	if err := t.get(ctx, &l, ds); err != nil {
		return nil, err
	}
	return &l, nil
}

func (t *tx) CreateLoan(ctx context.Context, loan *domain.Loan) error {
	id, err := t.insertReturningID(ctx, dialect.Insert(tableLoans).Rows(goqu.Record{
		"user_id":     loan.UserID,
		"book_id":     loan.BookID,
		"loan_date":   loan.LoanDate,
		"due_date":    loan.DueDate,
		"return_date": loan.ReturnDate,
		"fine_amount": loan.FineAmount,
	}))
	if err != nil {
		return err
	}
	loan.ID = id
	return nil
}

// UpdateLoan writes the mutable columns. loan_date and due_date never change after creation.
func (t *tx) UpdateLoan(ctx context.Context, loan *domain.Loan) error {
	return t.update(ctx, dialect.Update(tableLoans).Set(goqu.Record{
		"return_date": loan.ReturnDate,
		"fine_amount": loan.FineAmount,
	}).Where(goqu.C("id").Eq(loan.ID)))
}

func (t *tx) CountActiveLoansForUser(ctx context.Context, userID int64) (int, error) {
	var n int
	ds := dialect.From(tableLoans).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.C("user_id").Eq(userID), goqu.C("return_date").IsNull())
	if err := t.get(ctx, &n, ds); err != nil {
		return 0, err
	}
	return n, nil
}

func (t *tx) ListLoans(ctx context.Context, filter storage.LoanFilter, page storage.Page) ([]*domain.Loan, error) {
	ds := dialect.From(tableLoans).Select(loanColumns...)
	switch filter.Status {
	case domain.LoanStatusActive:
		ds = ds.Where(goqu.C("return_date").IsNull())
	case domain.LoanStatusOverdue:
		ds = ds.Where(goqu.C("return_date").IsNull(), goqu.C("due_date").Lt(filter.Now))
	}
	ds = ds.Order(goqu.C("loan_date").Desc(), goqu.C("id").Desc()).
		Offset(uint(page.Offset)).
		Limit(uint(page.Limit))

	loans := make([]*domain.Loan, 0)
	if err := t.selectAll(ctx, &loans, ds); err != nil {
		return nil, err
	}
	return loans, nil
}

func (t *tx) ListUserLoans(ctx context.Context, userID int64, activeOnly *bool) ([]*domain.Loan, error) {
	ds := dialect.From(tableLoans).Select(loanColumns...).Where(goqu.C("user_id").Eq(userID))
	if activeOnly != nil {
		if *activeOnly {
			ds = ds.Where(goqu.C("return_date").IsNull())
		} else {
			ds = ds.Where(goqu.C("return_date").IsNotNull())
		}
	}
	ds = ds.Order(goqu.C("loan_date").Desc(), goqu.C("id").Desc())

	loans := make([]*domain.Loan, 0)
	if err := t.selectAll(ctx, &loans, ds); err != nil {
		return nil, err
	}
	return loans, nil
}
