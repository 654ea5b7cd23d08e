package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-scout/internal/types"
)

// GetMatch retrieves the match record for one (user, posting) pair
func (db *DB) GetMatch(ctx context.Context, userID, fingerprint string) (*types.JobMatch, error) {
	var m types.JobMatch
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, fingerprint, score, status, feedback, created_at
		 FROM job_matches WHERE user_id = $1 AND fingerprint = $2`,
		userID, fingerprint,
	).Scan(&m.UserID, &m.Fingerprint, &m.Score, &m.Status, &m.Feedback, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &m, nil
}

// UpsertMatch creates a match or updates its score. The conflict path never
// touches status or feedback; those belong to the dashboard collaborator.
func (db *DB) UpsertMatch(ctx context.Context, match *types.JobMatch) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO job_matches (user_id, fingerprint, score, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, fingerprint) DO UPDATE SET score = EXCLUDED.score`,
		match.UserID, match.Fingerprint, match.Score, string(match.Status), match.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert match: %w", err)
	}
	return nil
}

// UpdateMatchStatus applies a dashboard status/feedback change. Score is
// deliberately not updatable here. Returns whether a row changed so callers
// can invalidate the keyword cache on save/remove transitions.
func (db *DB) UpdateMatchStatus(ctx context.Context, userID, fingerprint string, status types.MatchStatus, feedback *bool) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_matches
		 SET status = $3,
		     feedback = COALESCE($4, feedback),
		     saved_at = CASE WHEN $3 = 'saved' THEN NOW() ELSE saved_at END
		 WHERE user_id = $1 AND fingerprint = $2`,
		userID, fingerprint, string(status), feedback,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update match status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SavedMatches returns a user's saved matches, most recently saved first
func (db *DB) SavedMatches(ctx context.Context, userID string) ([]types.JobMatch, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT user_id, fingerprint, score, status, feedback, created_at
		 FROM job_matches
		 WHERE user_id = $1 AND status = 'saved'
		 ORDER BY COALESCE(saved_at, created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved matches: %w", err)
	}
	defer rows.Close()

	var matches []types.JobMatch
	for rows.Next() {
		var m types.JobMatch
		if err := rows.Scan(&m.UserID, &m.Fingerprint, &m.Score, &m.Status, &m.Feedback, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// ListMatches returns a user's matches above pending-removal, newest first
func (db *DB) ListMatches(ctx context.Context, userID string, limit int) ([]types.JobMatch, error) {
	if limit == 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT user_id, fingerprint, score, status, feedback, created_at
		 FROM job_matches
		 WHERE user_id = $1 AND status != 'removed'
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []types.JobMatch
	for rows.Next() {
		var m types.JobMatch
		if err := rows.Scan(&m.UserID, &m.Fingerprint, &m.Score, &m.Status, &m.Feedback, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}
