// internal/storage/postgres/users.go
package postgres

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"librarium/internal/domain"
	"librarium/internal/storage"
)

const tableUsers = "users"

var userColumns = []any{"id", "name", "email", "created_at"}

func (t *tx) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	ds := dialect.From(tableUsers).Select(userColumns...).Where(goqu.C("id").Eq(id))
	if err := t.get(ctx, &u, ds); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	ds := dialect.From(tableUsers).Select(userColumns...).Where(goqu.C("id").Eq(id)).ForUpdate(exp.Wait)
	if err := t.get(ctx, &u, ds); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	ds := dialect.From(tableUsers).Select(userColumns...).Where(goqu.C("email").Eq(email))
	if err := t.get(ctx, &u, ds); err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *tx) CreateUser(ctx context.Context, user *domain.User) error {
	id, err := t.insertReturningID(ctx, dialect.Insert(tableUsers).Rows(goqu.Record{
		"name":       user.Name,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	}))
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

func (t *tx) UpdateUser(ctx context.Context, user *domain.User) error {
	return t.update(ctx, dialect.Update(tableUsers).Set(goqu.Record{
		"name":  user.Name,
		"email": user.Email,
	}).Where(goqu.C("id").Eq(user.ID)))
}

func (t *tx) ListUsers(ctx context.Context, page storage.Page) ([]*domain.User, error) {
	users := make([]*domain.User, 0)
	ds := dialect.From(tableUsers).Select(userColumns...).
		Order(goqu.C("id").Asc()).
		Offset(uint(page.Offset)).
		Limit(uint(page.Limit))
	if err := t.selectAll(ctx, &users, ds); err != nil {
		return nil, err
	}
	return users, nil
}
