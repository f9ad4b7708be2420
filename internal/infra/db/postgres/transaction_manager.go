package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/ports/repository"
)

// executor covers the query surface shared by pools, connections and
// transactions, so repositories can run statements against whichever
// execution context the caller handed them.
type executor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// getExecutor resolves the opaque repository.Tx handle to something
// queryable, defaulting to the pool when no transaction is in flight.
func getExecutor(tx repository.Tx, pool *pgxpool.Pool) (executor, error) {
	switch v := tx.(type) {
	case nil:
		return pool, nil
	case pgx.Tx:
		return v, nil
	case *pgxpool.Conn:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func execSQL(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, sql, args...), nil
}

func queryRows(ctx context.Context, tx repository.Tx, pool *pgxpool.Pool, sql string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(tx, pool)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, sql, args...)
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type TxManager struct {
	pool *pgxpool.Pool
}

var _ repository.TransactionManager = (*TxManager)(nil)

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx runs fn inside a transaction, committing on nil error and
// rolling back otherwise. The pgx.Tx is passed to fn as an opaque
// repository.Tx so usecases stay driver-agnostic.
func (m *TxManager) WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
