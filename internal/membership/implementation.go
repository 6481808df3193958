// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"librarium/internal/domain"
	"librarium/internal/eventlog"
	"librarium/internal/storage"
)

// service implements the Service interface.
type service struct {
	store  storage.Store
	events *eventlog.Log
	logger logrus.FieldLogger
	clock  domain.Clock
}

// NewService creates a new membership service instance.
func NewService(store storage.Store, events *eventlog.Log, logger logrus.FieldLogger, clock domain.Clock) Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &service{
		store:  store,
		events: events,
		logger: logger,
		clock:  clock,
	}
}

// CreateUser registers a user. Emails are unique across users.
func (s *service) CreateUser(ctx context.Context, name, email string) (*domain.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, domain.InvalidArgument("name and email must not be empty")
	}

	user := &domain.User{Name: name, Email: email, CreatedAt: s.clock.Now()}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := s.ensureEmailFree(ctx, tx, email, 0); err != nil {
			return err
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", duplicateAsEmailExists(err))
		}
		return s.events.Record(ctx, tx, domain.AggregateUser, user.ID, domain.EventUserRegistered, UserRegisteredEvent{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "user_name": user.Name, "email": user.Email}).Info("user_created")
	return user, nil
}

// GetUser returns a single user.
func (s *service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user *domain.User
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", storage.NotFoundAs(err, domain.ErrUserNotFound))
		}
		return nil
	})
	return user, err
}

// ListUsers returns one page of users ordered by id.
func (s *service) ListUsers(ctx context.Context, page storage.Page) ([]*domain.User, error) {
	var users []*domain.User
	err := s.store.ReadOnly(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx, page)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		return nil
	})
	return users, err
}

// UpdateUser changes name and email. Keeping one's own email is not a conflict.
func (s *service) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*domain.User, error) {
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, domain.InvalidArgument("name must not be empty")
	}
	if update.Email != nil && strings.TrimSpace(*update.Email) == "" {
		return nil, domain.InvalidArgument("email must not be empty")
	}

	var user *domain.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		user, err = tx.GetUserForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", storage.NotFoundAs(err, domain.ErrUserNotFound))
		}
		if update.Name != nil {
			user.Name = strings.TrimSpace(*update.Name)
		}
		if update.Email != nil {
			email := strings.TrimSpace(*update.Email)
			if err := s.ensureEmailFree(ctx, tx, email, user.ID); err != nil {
				return err
			}
			user.Email = email
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to update user: %w", duplicateAsEmailExists(err))
		}
		return s.events.Record(ctx, tx, domain.AggregateUser, user.ID, domain.EventUserUpdated, UserUpdatedEvent{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "user_name": user.Name, "email": user.Email}).Info("user_updated")
	return user, nil
}

// ensureEmailFree fails with ErrEmailExists when a user other than self holds email.
func (s *service) ensureEmailFree(ctx context.Context, tx storage.Tx, email string, self int64) error {
	existing, err := tx.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up email: %w", err)
	case existing.ID != self:
		return domain.ErrEmailExists
	}
	return nil
}

// duplicateAsEmailExists covers the race where another transaction took the email
// between the lookup and the write.
func duplicateAsEmailExists(err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return domain.ErrEmailExists
	}
	return err
}
