package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-scout/internal/types"
)

// GetPosting retrieves a posting by fingerprint, purged or not
func (db *DB) GetPosting(ctx context.Context, fingerprint string) (*types.JobPosting, error) {
	var p types.JobPosting
	err := db.pool.QueryRow(ctx,
		`SELECT fingerprint, external_id, title, company, description, redirect_url,
		        closing_date, ingested_at
		 FROM job_postings WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&p.Fingerprint, &p.ExternalID, &p.Title, &p.Company, &p.Description,
		&p.RedirectURL, &p.ClosingDate, &p.IngestedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get posting: %w", err)
	}
	return &p, nil
}

// UpsertPosting atomically creates or updates a posting keyed by fingerprint.
// Within the staleness window the stored first-sighting ingested_at is
// preserved and only mutable fields change; a stale row is refreshed as if
// newly ingested. Safe under concurrent ingestion.
func (db *DB) UpsertPosting(ctx context.Context, posting *types.JobPosting, staleness time.Duration) (*types.JobPosting, error) {
	var p types.JobPosting
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_postings (fingerprint, external_id, title, company, description,
		                           redirect_url, closing_date, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (fingerprint) DO UPDATE SET
		     title = EXCLUDED.title,
		     company = EXCLUDED.company,
		     description = EXCLUDED.description,
		     redirect_url = EXCLUDED.redirect_url,
		     closing_date = EXCLUDED.closing_date,
		     purged = FALSE,
		     ingested_at = CASE
		         WHEN job_postings.ingested_at > EXCLUDED.ingested_at - make_interval(secs => $9)
		         THEN job_postings.ingested_at
		         ELSE EXCLUDED.ingested_at
		     END,
		     updated_at = NOW()
		 RETURNING fingerprint, external_id, title, company, description, redirect_url,
		           closing_date, ingested_at`,
		posting.Fingerprint, posting.ExternalID, posting.Title, posting.Company,
		posting.Description, posting.RedirectURL, posting.ClosingDate, posting.IngestedAt,
		staleness.Seconds(),
	).Scan(&p.Fingerprint, &p.ExternalID, &p.Title, &p.Company, &p.Description,
		&p.RedirectURL, &p.ClosingDate, &p.IngestedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert posting: %w", err)
	}
	return &p, nil
}

// PurgeExpired marks postings past their closing date, or past the default
// TTL when no closing date is known, as excluded from future matching.
// Purged rows are kept so existing matches stay resolvable.
func (db *DB) PurgeExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_postings SET purged = TRUE, updated_at = NOW()
		 WHERE purged = FALSE
		   AND ((closing_date IS NOT NULL AND closing_date < $1)
		     OR (closing_date IS NULL AND ingested_at < $1 - make_interval(secs => $2)))`,
		now, ttl.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge postings: %w", err)
	}
	return int(result.RowsAffected()), nil
}
