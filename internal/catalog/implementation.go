// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/inventory"
	"librarium/internal/storage"
)

// service implements the Service interface.
type service struct {
	store  storage.Store
	events *eventlog.Log
	logger logrus.FieldLogger
	retry  []storage.RetryOption
}

// NewService creates a new catalog service instance.
func NewService(store storage.Store, events *eventlog.Log, logger logrus.FieldLogger, retry ...storage.RetryOption) Service {
	return &service{
		store:  store,
		events: events,
		logger: logger,
		retry:  retry,
	}
}

// CreateBook adds a book with every copy on the shelf.
func (s *service) CreateBook(ctx context.Context, title, author string, totalCopies int) (*domain.Book, error) {
	if totalCopies < 0 {
		return nil, domain.InvalidArgument("total_copies must be >= 0")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(author) == "" {
		return nil, domain.InvalidArgument("title and author must not be empty")
	}

	book := &domain.Book{
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
	}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.CreateBook(ctx, book); err != nil {
			return fmt.Errorf("failed to create book: %w", err)
		}
		return s.events.Record(ctx, tx, domain.AggregateBook, book.ID, domain.EventBookAdded, BookAddedEvent{
			BookID:      book.ID,
			Title:       book.Title,
			Author:      book.Author,
			TotalCopies: book.TotalCopies,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"book_id": book.ID, "title": book.Title}).Info("book_created")
	return book, nil
}

// GetBook returns a single book.
func (s *service) GetBook(ctx context.Context, id int64) (*domain.Book, error) {
	var book *domain.Book
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		book, err = tx.GetBook(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get book: %w", storage.NotFoundAs(err, domain.ErrBookNotFound))
		}
		return nil
	})
	return book, err
}

// ListBooks returns one page of books ordered by id.
func (s *service) ListBooks(ctx context.Context, page storage.Page) ([]*domain.Book, error) {
	var books []*domain.Book
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		books, err = tx.ListBooks(ctx, page)
		if err != nil {
			return fmt.Errorf("failed to list books: %w", err)
		}
		return nil
	})
	return books, err
}

// UpdateBook changes title, author and copy count. A new copy count keeps the copies
// that are out on loan as out.
func (s *service) UpdateBook(ctx context.Context, id int64, update BookUpdate) (*domain.Book, error) {
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return nil, domain.InvalidArgument("title must not be empty")
	}
	if update.Author != nil && strings.TrimSpace(*update.Author) == "" {
		return nil, domain.InvalidArgument("author must not be empty")
	}
	if update.TotalCopies != nil && *update.TotalCopies < 0 {
		return nil, domain.InvalidArgument("total_copies must be >= 0")
	}

	var book *domain.Book
	err := storage.Retry(ctx, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			book, err = s.update(ctx, tx, id, update)
			return err
		})
	}, s.retry...)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"book_id":          book.ID,
		"title":            book.Title,
		"total_copies":     book.TotalCopies,
		"available_copies": book.AvailableCopies,
	}).Info("book_updated")
	return book, nil
}

func (s *service) update(ctx context.Context, tx storage.Tx, id int64, update BookUpdate) (*domain.Book, error) {
	book, err := tx.GetBookForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", storage.NotFoundAs(err, domain.ErrBookNotFound))
	}
	prevTotal, prevAvailable := book.TotalCopies, book.AvailableCopies

	if update.Title != nil {
		book.Title = *update.Title
	}
	if update.Author != nil {
		book.Author = *update.Author
	}
	if update.TotalCopies != nil {
		if err := inventory.ResizeCopies(book, *update.TotalCopies); err != nil {
			return nil, err
		}
	}
	if err := tx.UpdateBook(ctx, book); err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	if err := s.events.Record(ctx, tx, domain.AggregateBook, book.ID, domain.EventBookUpdated, BookUpdatedEvent{
		BookID:            book.ID,
		Title:             book.Title,
		Author:            book.Author,
		PreviousTotal:     prevTotal,
		TotalCopies:       book.TotalCopies,
		PreviousAvailable: prevAvailable,
		AvailableCopies:   book.AvailableCopies,
	}); err != nil {
		return nil, err
	}
	return book, nil
}

// Availability summarizes the copy counts of a book.
func (s *service) Availability(ctx context.Context, id int64) (*domain.Availability, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Availability{
		BookID:          book.ID,
		AvailableCopies: book.AvailableCopies,
		TotalCopies:     book.TotalCopies,
	}, nil
}
