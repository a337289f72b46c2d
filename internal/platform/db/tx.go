package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const DBTxKey contextKey = "db_tx"

// TxFromContext returns the transaction started by WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the tenant-scoped connection stored in ctx
// and returns a derived context carrying it. Repositories that resolve their
// connection through TxFromContext join the transaction automatically.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// RunInTx runs fn inside a transaction when a tenant connection is present in
// ctx, committing on success and rolling back on error. Without a connection
// fn runs directly against whatever the repositories resolve.
func RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil || ConnFromContext(ctx) == nil {
		return fn(ctx)
	}
	txCtx, tx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
