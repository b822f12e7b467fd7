package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by the pool and a transaction, so
// repositories run unchanged inside or outside a transaction. Both
// *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner abstracts delegation-scoped transactions so services can be
// tested without a live pool.
type TxRunner interface {
	InDelegationTx(ctx context.Context, delegationID uuid.UUID, fn func(ctx context.Context) error) error
}

var _ TxRunner = (*DB)(nil)

type querierKey struct{}

// WithQuerier stores a transaction (or other querier) in the context so
// repositories participate in the caller's transaction.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey{}, q)
}

// GetQuerier returns the querier stored in the context, falling back to
// the pool when the caller is not inside a transaction.
func (db *DB) GetQuerier(ctx context.Context) Querier {
	if q, ok := ctx.Value(querierKey{}).(Querier); ok && q != nil {
		return q
	}
	return db.Pool
}

// InDelegationTx runs fn inside a transaction that holds the advisory
// lock for the delegation id. The lock serializes all writers of one
// delegation's ledger and counters: the hash chain is strictly ordered,
// so two concurrent appends computing the head from the same previous
// value would corrupt it. The lock is transaction-scoped and released
// automatically on commit or rollback.
func (db *DB) InDelegationTx(ctx context.Context, delegationID uuid.UUID, fn func(ctx context.Context) error) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))", delegationID.String()); err != nil {
		return fmt.Errorf("acquire delegation lock: %w", err)
	}

	if err := fn(WithQuerier(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
