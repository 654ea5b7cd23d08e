package matching

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/job-scout/internal/types"
)

// Default windows for posting freshness
const (
	DefaultStalenessWindow = 30 * 24 * time.Hour
	DefaultPostingTTL      = 45 * 24 * time.Hour
)

// Fingerprint derives the stable identity of a posting across ingestion runs.
// Re-posted jobs with cosmetic title/company variations collapse to one entry.
func Fingerprint(externalID, title, company string) string {
	payload := externalID + "|" + normalizeField(title) + "|" + normalizeField(company)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// normalizeField lowercases and collapses whitespace
func normalizeField(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Scraper fetches the full description behind a posting's redirect URL.
// Sources often deliver only a snippet; the scrape is best effort.
type Scraper interface {
	FullDescription(ctx context.Context, url string) (string, error)
}

// IngestStats summarizes one ingestion pass
type IngestStats struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Ingestor fingerprints and upserts postings coming from the job source
type Ingestor struct {
	store     PostingStore
	scraper   Scraper // optional
	staleness time.Duration
	now       func() time.Time
}

// NewIngestor creates an Ingestor. A nil scraper disables description
// scraping; a zero staleness uses the default window.
func NewIngestor(store PostingStore, scraper Scraper, staleness time.Duration) *Ingestor {
	if staleness == 0 {
		staleness = DefaultStalenessWindow
	}
	return &Ingestor{store: store, scraper: scraper, staleness: staleness, now: time.Now}
}

// Ingest upserts a batch of postings and returns the stored, deduplicated
// set. A fingerprint collision is not an error; it routes to the update path.
func (ing *Ingestor) Ingest(ctx context.Context, postings []types.JobPosting) ([]types.JobPosting, IngestStats, error) {
	var stats IngestStats
	stored := make([]types.JobPosting, 0, len(postings))
	seen := make(map[string]bool, len(postings))

	for _, posting := range postings {
		if posting.ExternalID == "" && posting.Title == "" {
			stats.Skipped++
			continue
		}
		posting.Fingerprint = Fingerprint(posting.ExternalID, posting.Title, posting.Company)
		if seen[posting.Fingerprint] {
			stats.Skipped++
			continue
		}
		seen[posting.Fingerprint] = true

		if ing.scraper != nil && posting.RedirectURL != "" {
			// Best effort: a failed scrape keeps the source snippet.
			if full, err := ing.scraper.FullDescription(ctx, posting.RedirectURL); err == nil && full != "" {
				posting.Description = full
			}
		}

		existing, err := ing.store.GetPosting(ctx, posting.Fingerprint)
		if err != nil {
			return stored, stats, fmt.Errorf("failed to look up posting %s: %w", posting.Fingerprint, err)
		}

		posting.IngestedAt = ing.now()
		result, err := ing.store.UpsertPosting(ctx, &posting, ing.staleness)
		if err != nil {
			return stored, stats, fmt.Errorf("failed to upsert posting %s: %w", posting.Fingerprint, err)
		}

		if existing != nil && ing.now().Sub(existing.IngestedAt) <= ing.staleness {
			stats.Updated++
		} else {
			stats.Inserted++
		}
		stored = append(stored, *result)
	}

	return stored, stats, nil
}

// Purgeable reports whether a posting should be excluded from matching:
// its closing date has passed, or it outlived the default TTL when no
// closing date is known. A missing closing date is an expiry inconsistency,
// not an error; the TTL applies instead.
func Purgeable(p types.JobPosting, now time.Time, ttl time.Duration) bool {
	if ttl == 0 {
		ttl = DefaultPostingTTL
	}
	if p.ClosingDate != nil {
		return p.ClosingDate.Before(now)
	}
	return now.Sub(p.IngestedAt) > ttl
}
