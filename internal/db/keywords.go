package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-scout/internal/types"
)

// GetKeywordCache retrieves a user's keyword cache, or nil if none exists
func (db *DB) GetKeywordCache(ctx context.Context, userID string) (*types.KeywordCache, error) {
	var (
		cache       types.KeywordCache
		termsJSON   []byte
		derivedJSON []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, terms, derived_from, stale
		 FROM keyword_caches WHERE user_id = $1`,
		userID,
	).Scan(&cache.UserID, &termsJSON, &derivedJSON, &cache.Stale)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get keyword cache: %w", err)
	}

	if err := json.Unmarshal(termsJSON, &cache.Terms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keyword terms: %w", err)
	}
	if err := json.Unmarshal(derivedJSON, &cache.DerivedFrom); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache provenance: %w", err)
	}
	return &cache, nil
}

// PutKeywordCache stores a freshly derived keyword set for a user
func (db *DB) PutKeywordCache(ctx context.Context, cache *types.KeywordCache) error {
	termsJSON, err := json.Marshal(cache.Terms)
	if err != nil {
		return fmt.Errorf("failed to marshal keyword terms: %w", err)
	}
	derivedJSON, err := json.Marshal(cache.DerivedFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal cache provenance: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO keyword_caches (user_id, terms, derived_from, stale)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
		     terms = $2, derived_from = $3, stale = $4, updated_at = NOW()`,
		cache.UserID, termsJSON, derivedJSON, cache.Stale,
	)
	if err != nil {
		return fmt.Errorf("failed to put keyword cache: %w", err)
	}
	return nil
}

// MarkKeywordCacheStale flags a user's cache for recomputation on next use.
// A missing cache is already effectively stale, so no row is created.
func (db *DB) MarkKeywordCacheStale(ctx context.Context, userID string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE keyword_caches SET stale = TRUE, updated_at = NOW() WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark keyword cache stale: %w", err)
	}
	return nil
}
