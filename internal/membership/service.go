// internal/membership/service.go
package membership

import (
	"context"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

// Service defines the interface for the membership service.
type Service interface {
	CreateUser(ctx context.Context, name, email string) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context, page storage.Page) ([]*domain.User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*domain.User, error)
}
