package db

import (
	"context"
	"fmt"
)

// Processed reports whether a user was already completed in the given
// scheduler epoch. A resumed run uses this to skip finished work.
func (db *DB) Processed(ctx context.Context, epoch, userID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM batch_checkpoints WHERE epoch = $1 AND user_id = $2)`,
		epoch, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check checkpoint: %w", err)
	}
	return exists, nil
}

// MarkProcessed records a user as completed within an epoch
func (db *DB) MarkProcessed(ctx context.Context, epoch, userID string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO batch_checkpoints (epoch, user_id) VALUES ($1, $2)
		 ON CONFLICT (epoch, user_id) DO NOTHING`,
		epoch, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark checkpoint: %w", err)
	}
	return nil
}
