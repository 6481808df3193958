// internal/storage/postgres/books.go
package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

const tableBooks = "books"

var bookColumns = []any{"id", "title", "author", "total_copies", "available_copies"}

func (t *tx) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	ds := dialect.From(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(id))
	if err := t.get(ctx, &b, ds); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *tx) GetBookForUpdate(ctx context.Context, id int64) (*domain.Book, error) {
	var b domain.Book
	ds := dialect.From(tableBooks).Select(bookColumns...).Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait)
	if err := t.get(ctx, &b, ds); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *tx) CreateBook(ctx context.Context, book *domain.Book) error {
	id, err := t.insertReturningID(ctx, dialect.Insert(tableBooks).Rows(goqu.Record{
		"title":            book.Title,
		"author":           book.Author,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	}))
	if err != nil {
		return err
	}
	book.ID = id
	return nil
}

func (t *tx) UpdateBook(ctx context.Context, book *domain.Book) error {
	return t.update(ctx, dialect.Update(tableBooks).Set(goqu.Record{
		"title":            book.Title,
		"author":           book.Author,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	}).Where(goqu.C("id").Eq(book.ID)))
}

func (t *tx) ListBooks(ctx context.Context, page storage.Page) ([]*domain.Book, error) {
	books := make([]*domain.Book, 0)
	ds := dialect.From(tableBooks).Select(bookColumns...).
		Order(goqu.C("id").Asc()).
		Offset(uint(page.Offset)).
		Limit(uint(page.Limit))
	if err := t.selectAll(ctx, &books, ds); err != nil {
		return nil, err
	}
	return books, nil
}

func (t *tx) ListBookStock(ctx context.Context) ([]*domain.BookStock, error) {
	stock := make([]*domain.BookStock, 0)
	ds := dialect.From(goqu.T(tableBooks).As("b")).
		LeftJoin(goqu.T(tableLoans).As("l"), goqu.On(
			goqu.I("l.book_id").Eq(goqu.I("b.id")),
			goqu.I("l.return_date").IsNull(),
		)).
		Select(
			goqu.I("b.id"),
			goqu.I("b.title"),
			goqu.I("b.author"),
			goqu.I("b.total_copies"),
			goqu.I("b.available_copies"),
			goqu.COUNT(goqu.I("l.id")).As("active_loans"),
		).
		GroupBy(goqu.I("b.id")).
		Order(goqu.I("b.id").Asc())
	if err := t.selectAll(ctx, &stock, ds); err != nil {
		return nil, err
	}
	return stock, nil
}
