// Package matching implements the job matching engine: posting ingestion and
// dedup, per-user match scoring, saved-job keyword aggregation, and the batch
// scheduler that fans the work out across users.
package matching

import (
	"context"
	"time"

	"github.com/jonathan/job-scout/internal/types"
)

// PostingStore is the catalog of deduplicated job postings. UpsertPosting is
// atomic keyed by fingerprint: within the staleness window an existing
// posting's mutable fields are updated in place and its first-sighting
// ingested_at is preserved; outside it the posting is stored as new.
type PostingStore interface {
	GetPosting(ctx context.Context, fingerprint string) (*types.JobPosting, error)
	UpsertPosting(ctx context.Context, posting *types.JobPosting, staleness time.Duration) (*types.JobPosting, error)
	// PurgeExpired excludes postings whose closing date has passed, or whose
	// default TTL has lapsed when no closing date is known, from future
	// matching. Returns how many postings were purged.
	PurgeExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error)
}

// MatchStore holds per-(user, posting) match records
type MatchStore interface {
	GetMatch(ctx context.Context, userID, fingerprint string) (*types.JobMatch, error)
	UpsertMatch(ctx context.Context, match *types.JobMatch) error
	// SavedMatches returns the user's saved matches, most recently saved first
	SavedMatches(ctx context.Context, userID string) ([]types.JobMatch, error)
}

// KeywordStore persists derived search-refinement terms per user
type KeywordStore interface {
	GetKeywordCache(ctx context.Context, userID string) (*types.KeywordCache, error)
	PutKeywordCache(ctx context.Context, cache *types.KeywordCache) error
	MarkKeywordCacheStale(ctx context.Context, userID string) error
}

// CheckpointStore records per-user completion within a batch run epoch,
// making interrupted runs resumable.
type CheckpointStore interface {
	Processed(ctx context.Context, epoch, userID string) (bool, error)
	MarkProcessed(ctx context.Context, epoch, userID string) error
}

// ProfileStore exposes the converged profiles the scorer matches against
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (types.Profile, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}
