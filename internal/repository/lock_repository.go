package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/pkg/database"
)

// RoomLocker serialises reservation writers through PostgreSQL transaction
// advisory locks so that conflict detection and the following write cannot
// interleave with another writer for the same key.
type RoomLocker struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewRoomLocker constructs a RoomLocker.
func NewRoomLocker(db *sqlx.DB, logger *zap.Logger) *RoomLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomLocker{db: db, logger: logger}
}

// WithLock opens a transaction, takes the advisory lock for key inside it and
// runs fn with the transaction bound to its context. Every repository call fn
// makes through that context shares the one connection, so a writer never
// needs a second pool slot while it holds the lock. fn's error rolls the
// transaction back; the lock is released when the transaction ends.
func (l *RoomLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin locked transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		l.rollback(tx, key)
		return fmt.Errorf("acquire advisory lock %s: %w", key, err)
	}

	if err := fn(database.WithTx(ctx, tx)); err != nil {
		l.rollback(tx, key)
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit locked transaction %s: %w", key, err)
	}
	return nil
}

func (l *RoomLocker) rollback(tx *sqlx.Tx, key string) {
	if err := tx.Rollback(); err != nil {
		l.logger.Warn("rollback locked transaction failed", zap.String("key", key), zap.Error(err))
	}
}
