// internal/storage/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"librarium/internal/storage"
)

// Store implements storage.Store on PostgreSQL. Transactions run at READ COMMITTED;
// contended rows are serialized with SELECT ... FOR UPDATE.
type Store struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewStore wraps an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("librarium/storage/postgres"),
	}
}

// WithTx runs fn in a read-write transaction.
func (s *Store) WithTx(ctx context.Context, fn storage.TxFunc) error {
	return s.run(ctx, "store.tx", &sql.TxOptions{Isolation: sql.LevelReadCommitted}, fn)
}

// ReadOnly runs fn in a read-only transaction.
func (s *Store) ReadOnly(ctx context.Context, fn storage.TxFunc) error {
	return s.run(ctx, "store.read", &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}, fn)
}

func (s *Store) run(ctx context.Context, name string, opts *sql.TxOptions, fn storage.TxFunc) (err error) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Bool("tx.read_only", opts.ReadOnly),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sqlTx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return translate(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				span.AddEvent("rollback.failed", trace.WithAttributes(attribute.String("error", rbErr.Error())))
			}
		}
	}()

	if err = fn(ctx, &tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

var dialect = goqu.Dialect("postgres")

// tx runs statements built with goqu on a single sqlx transaction.
type tx struct {
	tx *sqlx.Tx
}

func (t *tx) get(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	return translate(t.tx.GetContext(ctx, dest, query, args...))
}

func (t *tx) selectAll(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build select: %w", err)
	}
	return translate(t.tx.SelectContext(ctx, dest, query, args...))
}

func (t *tx) insertReturningID(ctx context.Context, ds *goqu.InsertDataset) (int64, error) {
	query, args, err := ds.Returning("id").Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	var id int64
	if err := t.tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, translate(err)
	}
	return id, nil
}

// update executes ds and reports storage.ErrNotFound when no row matched.
func (t *tx) update(ctx context.Context, ds *goqu.UpdateDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
