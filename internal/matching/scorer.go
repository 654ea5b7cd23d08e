package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/prompts"
	"github.com/jonathan/job-scout/internal/types"
)

// Scoring weights and decision thresholds
const (
	DefaultKeywordWeight      = 0.4
	DefaultRelevanceWeight    = 0.6
	DefaultRecommendThreshold = 70.0
	// materialScoreDelta is the minimum improvement before a stored pending
	// match's score is rewritten
	materialScoreDelta = 5.0
)

// Scorer computes fit scores and recommendation decisions per (user, posting)
type Scorer struct {
	matches   MatchStore
	caller    *llm.Caller // nil degrades to overlap-only scoring
	threshold float64
	w1, w2    float64
	now       func() time.Time
}

// NewScorer creates a Scorer with default weights
func NewScorer(matches MatchStore, caller *llm.Caller, threshold float64) *Scorer {
	if threshold == 0 {
		threshold = DefaultRecommendThreshold
	}
	return &Scorer{
		matches:   matches,
		caller:    caller,
		threshold: threshold,
		w1:        DefaultKeywordWeight,
		w2:        DefaultRelevanceWeight,
		now:       time.Now,
	}
}

// Score evaluates one posting against a profile. Postings below the
// recommendation threshold are not persisted, keeping the match store
// bounded. Re-scoring an existing pending match rewrites the score only on a
// material improvement and never touches a status that has left pending.
func (s *Scorer) Score(ctx context.Context, userID string, profile types.Profile, posting types.JobPosting) (*types.JobMatch, error) {
	overlap := keywordOverlap(profile, posting)

	relevance, err := s.relevanceEstimate(ctx, profile, posting)
	score := s.w1*overlap + s.w2*relevance
	if err != nil {
		// Completion service unavailable: redistribute onto the overlap
		// component rather than dropping the user's batch slot.
		score = overlap
	}
	score = clampScore(score)

	if score < s.threshold {
		return nil, nil
	}

	existing, err := s.matches.GetMatch(ctx, userID, posting.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to look up match: %w", err)
	}

	if existing == nil {
		match := &types.JobMatch{
			UserID:      userID,
			Fingerprint: posting.Fingerprint,
			Score:       score,
			Status:      types.MatchPending,
			CreatedAt:   s.now(),
		}
		if err := s.matches.UpsertMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to store match: %w", err)
		}
		return match, nil
	}

	if existing.Status == types.MatchPending && score >= existing.Score+materialScoreDelta {
		existing.Score = score
		if err := s.matches.UpsertMatch(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update match score: %w", err)
		}
	}
	return existing, nil
}

// keywordOverlap scores 0-100 by the fraction of profile terms appearing in
// the posting text.
func keywordOverlap(profile types.Profile, posting types.JobPosting) float64 {
	terms := profileTerms(profile)
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(posting.Title + " " + posting.Description)
	matched := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(terms))
}

// profileTerms collects lowercase skill and role terms from the included
// clusters of a profile.
func profileTerms(profile types.Profile) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(raw string) {
		for _, part := range strings.Split(raw, ",") {
			term := strings.ToLower(strings.TrimSpace(part))
			if term != "" && !seen[term] {
				seen[term] = true
				terms = append(terms, term)
			}
		}
	}

	if skills, ok := profile[types.ClusterSkills]; ok && skills.Include {
		for _, item := range skills.Items {
			add(item.Title)
		}
		for _, v := range skills.Fields {
			add(v)
		}
	}
	if work, ok := profile[types.ClusterWork]; ok && work.Include {
		for _, item := range work.Items {
			add(item.Title)
		}
	}
	return terms
}

// relevanceOutput mirrors the completion-service fit estimate
type relevanceOutput struct {
	FitScore    float64 `json:"fit_score"`
	Explanation string  `json:"explanation"`
}

// relevanceEstimate asks the completion service for a 0-10 fit rating and
// scales it to 0-100. Personal clusters are excluded from the prompt.
func (s *Scorer) relevanceEstimate(ctx context.Context, profile types.Profile, posting types.JobPosting) (float64, error) {
	if s.caller == nil {
		return 0, fmt.Errorf("no completion service configured")
	}

	prompt := prompts.Format(prompts.MustGet("matching.json", "estimate_relevance"), map[string]string{
		"Profile":     sanitizedProfileJSON(profile),
		"Title":       posting.Title,
		"Company":     posting.Company,
		"Description": posting.Description,
	})

	raw, err := s.caller.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return 0, err
	}

	var out relevanceOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return 0, &llm.UpstreamAIError{Kind: llm.KindInvalidResponse, Err: fmt.Errorf("failed to decode fit estimate: %w", err)}
	}
	if out.FitScore < 0 || out.FitScore > 10 {
		return 0, &llm.UpstreamAIError{Kind: llm.KindInvalidResponse, Err: fmt.Errorf("fit_score %v out of range", out.FitScore)}
	}
	return out.FitScore * 10, nil
}

// sanitizedProfileJSON serializes the profile for prompting with identifying
// clusters removed.
func sanitizedProfileJSON(profile types.Profile) string {
	redacted := make(map[string]*types.Cluster, len(profile))
	for name, cluster := range profile {
		if name == types.ClusterName || name == types.ClusterContact {
			continue
		}
		if !cluster.Include || cluster.Empty() {
			continue
		}
		redacted[name] = cluster
	}
	data, err := json.Marshal(redacted)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
