package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/plumeworks/plume/internal/model"
)

// InsertLockRecord attempts to claim the lock row for key. The unique
// primary key makes this an insert-if-absent race: the return value is
// true only when this call created the row. Writers must never blind-upsert
// here — a lost INSERT race is the signal that someone else holds the lock.
func (db *DB) InsertLockRecord(ctx context.Context, key, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO install_locks (lock_key, holder_id, acquired_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		key, holderID, now, now.Add(ttl),
	)
	if err != nil {
		return false, fmt.Errorf("storage: insert lock record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetLockRecord returns the lock row for key, or ErrNotFound.
func (db *DB) GetLockRecord(ctx context.Context, key string) (model.LockRecord, error) {
	var rec model.LockRecord
	err := db.pool.QueryRow(ctx,
		`SELECT lock_key, holder_id, acquired_at, expires_at
		 FROM install_locks WHERE lock_key = $1`,
		key,
	).Scan(&rec.LockKey, &rec.HolderID, &rec.AcquiredAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LockRecord{}, ErrNotFound
	}
	if err != nil {
		return model.LockRecord{}, fmt.Errorf("storage: get lock record: %w", err)
	}
	return rec, nil
}

// DeleteLockRecord unconditionally removes the lock row for key.
func (db *DB) DeleteLockRecord(ctx context.Context, key string) error {
	if _, err := db.pool.Exec(ctx,
		`DELETE FROM install_locks WHERE lock_key = $1`, key,
	); err != nil {
		return fmt.Errorf("storage: delete lock record: %w", err)
	}
	return nil
}

// DeleteExpiredLock removes the row for key only if it has expired.
// Returns true when a row was reaped, meaning the key is free to retry.
func (db *DB) DeleteExpiredLock(ctx context.Context, key string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM install_locks WHERE lock_key = $1 AND expires_at <= now()`, key,
	)
	if err != nil {
		return false, fmt.Errorf("storage: delete expired lock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredLocks reaps every expired lock row and returns the count.
func (db *DB) DeleteExpiredLocks(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM install_locks WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("storage: delete expired locks: %w", err)
	}
	return tag.RowsAffected(), nil
}
