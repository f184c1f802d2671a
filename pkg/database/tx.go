package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// WithTx returns a context carrying tx. Repositories reading ctx run their
// statements on tx instead of the pool.
func WithTx(ctx context.Context, tx *sqlx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom returns the transaction bound to ctx, or nil.
func TxFrom(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

// InTx reports whether ctx carries a transaction. A transaction owns a single
// connection, so callers must not issue statements on it concurrently.
func InTx(ctx context.Context) bool {
	return TxFrom(ctx) != nil
}
