package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"librarium/internal/storage"
)

func Test_translate(t *testing.T) {
	other := errors.New("other")

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, storage.ErrNotFound},
		{"pq unique", &pq.Error{Code: codeUniqueViolation}, storage.ErrDuplicate},
		{"pgx unique", &pgconn.PgError{Code: codeUniqueViolation}, storage.ErrDuplicate},
		{"pq serialization", fmt.Errorf("commit: %w", &pq.Error{Code: codeSerializationFailure}), storage.ErrConflict},
		{"pgx deadlock", &pgconn.PgError{Code: codeDeadlockDetected}, storage.ErrConflict},
		{"pq foreign key", &pq.Error{Code: codeForeignKeyViolation}, storage.ErrNotFound},
		{"passthrough", other, other},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tc.in), tc.want)
		})
	}

	assert.NoError(t, translate(nil))
}
