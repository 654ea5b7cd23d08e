package types

import "time"

// JobPosting represents a deduplicated job posting in the shared catalog
type JobPosting struct {
	ExternalID  string     `json:"external_id"`
	Fingerprint string     `json:"fingerprint"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Description string     `json:"description"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	ClosingDate *time.Time `json:"closing_date,omitempty"`
	IngestedAt  time.Time  `json:"ingested_at"` // first sighting, preserved across re-ingestion
}

// MatchStatus tracks the user-facing lifecycle of a recommendation
type MatchStatus string

// JobMatch statuses
const (
	MatchPending MatchStatus = "pending"
	MatchSaved   MatchStatus = "saved"
	MatchApplied MatchStatus = "applied"
	MatchRemoved MatchStatus = "removed"
)

// JobMatch is a scored recommendation for one (user, posting) pair. At most one
// match exists per pair; dashboard collaborators may update Status and Feedback
// but never Score.
type JobMatch struct {
	UserID      string      `json:"user_id"`
	Fingerprint string      `json:"fingerprint"`
	Score       float64     `json:"score"` // 0-100
	Status      MatchStatus `json:"status"`
	Feedback    *bool       `json:"feedback,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// KeywordCache holds the derived search-refinement terms for a user. It is
// invalidated (Stale=true) whenever the user's saved-job set changes and
// recomputed at the start of the next matching run.
type KeywordCache struct {
	UserID      string   `json:"user_id"`
	Terms       []string `json:"terms"` // ordered, at most 10
	DerivedFrom []string `json:"derived_from"`
	Stale       bool     `json:"stale"`
}
