// Package postgres is the pgx-backed store.Store. Read-write transactions run
// at READ COMMITTED and rely on LockTenant row locks for quota serialization;
// read-only transactions run at REPEATABLE READ so a permission resolution
// sees one consistent snapshot of the role graph.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/tenantguard/internal/apperr"
	"github.com/nikhilbhutani/tenantguard/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return mapErr("store.ping", err)
	}
	return nil
}

func (s *Store) run(ctx context.Context, opts pgx.TxOptions, fn func(tx store.Tx) error) error {
	pgxTx, err := s.pool.BeginTx(ctx, opts)
	if err != nil {
		return mapErr("store.begin", err)
	}
	// Rollback is a no-op after a successful commit. It must still run when
	// ctx is already canceled.
	defer pgxTx.Rollback(context.WithoutCancel(ctx))

	if err := fn(&tx{q: pgxTx}); err != nil {
		return err
	}
	if err := pgxTx.Commit(ctx); err != nil {
		return mapErr("store.commit", err)
	}
	return nil
}

type tx struct {
	q pgx.Tx
}

var _ store.Tx = (*tx)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerialization       = "40001"
	codeDeadlock            = "40P01"
)

// mapErr folds pgx and Postgres failures into the apperr taxonomy.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, op, err)
		case pgErr.Code == codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, op, err)
		case pgErr.Code == codeSerialization, pgErr.Code == codeDeadlock:
			return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.Wrap(apperr.KindStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func one[T any](ctx context.Context, q pgx.Tx, op, sql string, args ...any) (*T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	v, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		return nil, mapErr(op, err)
	}
	return v, nil
}

func many[T any](ctx context.Context, q pgx.Tx, op, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapErr(op, err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, mapErr(op, err)
	}
	return out, nil
}

func (t *tx) exec(ctx context.Context, op, sql string, args ...any) (int64, error) {
	tag, err := t.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapErr(op, err)
	}
	return tag.RowsAffected(), nil
}
