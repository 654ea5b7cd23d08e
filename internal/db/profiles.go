package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-scout/internal/types"
)

// SaveProfile stores a finalized profile for a user. Called on pipeline
// handoff once a run reaches a terminal state.
func (db *DB) SaveProfile(ctx context.Context, userID string, profile types.Profile, completeness float64, state types.RunState) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, profile, completeness, state)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     profile = $2, completeness = $3, state = $4, updated_at = NOW()`,
		userID, data, completeness, string(state),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a user's profile, or nil if none is stored
func (db *DB) GetProfile(ctx context.Context, userID string) (types.Profile, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT profile FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&data)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile types.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return profile, nil
}

// ListUserIDs returns every user with a stored profile
func (db *DB) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT user_id FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, nil
}
