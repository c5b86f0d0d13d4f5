// Package memory is a store.Store backed by hashicorp/go-memdb. Write
// transactions are serialized by memdb's writer lock, which gives the same
// per-operation atomicity the Postgres store gets from row locks. Foreign keys
// and cascades of the relational schema are enforced by hand.
package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	hcmemdb "github.com/hashicorp/go-memdb"

	"github.com/nikhilbhutani/tenantguard/internal/store"
)

type Store struct {
	db       *hcmemdb.MemDB
	auditSeq atomic.Uint64
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() (*Store, error) {
	db, err := hcmemdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := fn(&tx{txn: txn, s: s}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(&tx{txn: txn, s: s})
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

type tx struct {
	txn *hcmemdb.Txn
	s   *Store
}

var _ store.Tx = (*tx)(nil)

func first[T any](t *tx, table, index string, args ...interface{}) (*T, error) {
	raw, err := t.txn.First(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup %s.%s: %w", table, index, err)
	}
	if raw == nil {
		return nil, nil
	}
	v := *raw.(*T)
	return &v, nil
}

func list[T any](t *tx, table, index string, args ...interface{}) ([]T, error) {
	it, err := t.txn.Get(table, index, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s.%s: %w", table, index, err)
	}
	var out []T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*T))
	}
	return out, nil
}

func (t *tx) insert(table string, obj interface{}) error {
	if err := t.txn.Insert(table, obj); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (t *tx) delete(table string, obj interface{}) error {
	if err := t.txn.Delete(table, obj); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (t *tx) deleteAll(table, index string, args ...interface{}) error {
	if _, err := t.txn.DeleteAll(table, index, args...); err != nil {
		return fmt.Errorf("delete %s by %s: %w", table, index, err)
	}
	return nil
}
