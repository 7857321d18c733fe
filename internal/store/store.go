// Package store persists the connection ledger, the user/node identity
// mirror, the ASN cache, and sync bookkeeping. It talks to Postgres
// directly over pgx; there is no generated query layer to wrap.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, letting every query method
// run either standalone or inside a caller-managed transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides all database operations used by the collector, monitor,
// violation detector, ASN bulk sync, sync worker, and token rotation.
type Store struct {
	db DBTX
}

// New creates a Store backed by the given database handle.
func New(dbtx DBTX) *Store {
	return &Store{db: dbtx}
}

// WithTx returns a Store bound to the given transaction, so a caller can run
// several Store methods atomically.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// BeginTx starts a transaction on the underlying pool. It returns an error
// if the Store was built over a transaction rather than a pool.
func (s *Store) BeginTx(ctx context.Context) (pgx.Tx, error) {
	pool, ok := s.db.(*pgxpool.Pool)
	if !ok {
		return nil, errNotAPool
	}
	return pool.Begin(ctx)
}

// Ping verifies the store can reach the database, used by the collector's
// health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	var ok int
	return s.db.QueryRow(ctx, "SELECT 1").Scan(&ok)
}

var errNotAPool = &notAPoolError{}

type notAPoolError struct{}

func (*notAPoolError) Error() string {
	return "store: underlying DBTX is not a transaction-capable pool"
}
