package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/room-reservation-api/pkg/database"
)

// invalidTextRepresentation is raised when a parameter cannot be parsed as its
// column type, for example a malformed UUID.
const invalidTextRepresentation = "22P02"

// dbtx is the statement surface shared by *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// executor returns the transaction bound to ctx, falling back to the pool.
func executor(ctx context.Context, db *sqlx.DB) dbtx {
	if tx := database.TxFrom(ctx); tx != nil {
		return tx
	}
	return db
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

// lookupErr maps a key that can never match a row onto sql.ErrNoRows.
func lookupErr(err error) error {
	if isInvalidText(err) {
		return sql.ErrNoRows
	}
	return err
}
