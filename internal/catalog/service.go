// internal/catalog/service.go
package catalog

import (
	"context"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

// Service defines the interface for the catalog service.
type Service interface {
	CreateBook(ctx context.Context, title, author string, totalCopies int) (*domain.Book, error)
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	ListBooks(ctx context.Context, page storage.Page) ([]*domain.Book, error)
	UpdateBook(ctx context.Context, id int64, update BookUpdate) (*domain.Book, error)
	Availability(ctx context.Context, id int64) (*domain.Availability, error)
}
