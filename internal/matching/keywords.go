package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/prompts"
	"github.com/jonathan/job-scout/internal/types"
)

// Keyword aggregation limits
const (
	maxTermsPerPosting = 15
	maxKeywords        = 10
)

// termSynonyms collapses common variants to one canonical term
var termSynonyms = map[string]string{
	"golang":           "go",
	"k8s":              "kubernetes",
	"js":               "javascript",
	"ts":               "typescript",
	"ml":               "machine learning",
	"ai":               "machine learning",
	"postgres":         "postgresql",
	"node":             "node.js",
	"nodejs":           "node.js",
	"remote work":      "remote",
	"work from home":   "remote",
	"ci/cd":            "cicd",
	"microservice":     "microservices",
	"backend engineer": "backend",
	"pipelines":        "pipeline",
	"databases":        "database",
}

// stopWords filters structural words out of heuristic term extraction
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "you": true, "your": true, "our": true,
	"are": true, "will": true, "have": true, "has": true, "can": true,
	"job": true, "role": true, "work": true, "team": true, "years": true,
	"experience": true, "required": true, "preferred": true, "about": true,
	"into": true, "more": true, "than": true, "all": true, "not": true,
}

// Aggregator derives and caches search-refinement terms from a user's saved
// jobs. Candidate terms are cached per posting fingerprint so a posting is
// only analyzed once across users and runs.
type Aggregator struct {
	keywords KeywordStore
	matches  MatchStore
	postings PostingStore
	caller   *llm.Caller // nil falls back to heuristic extraction

	mu        sync.Mutex
	termCache map[string][]string // fingerprint -> candidate terms
}

// NewAggregator creates an Aggregator
func NewAggregator(keywords KeywordStore, matches MatchStore, postings PostingStore, caller *llm.Caller) *Aggregator {
	return &Aggregator{
		keywords:  keywords,
		matches:   matches,
		postings:  postings,
		caller:    caller,
		termCache: make(map[string][]string),
	}
}

// Invalidate marks a user's keyword cache stale. Called on every save or
// remove of a saved job; the recompute happens on the next matching run.
func (a *Aggregator) Invalidate(ctx context.Context, userID string) error {
	return a.keywords.MarkKeywordCacheStale(ctx, userID)
}

// Refresh returns the user's keyword cache, recomputing it only when stale.
// The result is the additive filter appended to the next job-source query.
func (a *Aggregator) Refresh(ctx context.Context, userID string) (*types.KeywordCache, error) {
	cache, err := a.keywords.GetKeywordCache(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyword cache: %w", err)
	}
	if cache != nil && !cache.Stale {
		return cache, nil
	}

	saved, err := a.matches.SavedMatches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved matches: %w", err)
	}

	// Weight terms by frequency across saved jobs, discounted by how long
	// ago each job was saved (most recent save carries full weight).
	weights := make(map[string]float64)
	fingerprints := make([]string, 0, len(saved))
	for rank, match := range saved {
		fingerprints = append(fingerprints, match.Fingerprint)
		recency := 1.0 / float64(1+rank)

		posting, err := a.postings.GetPosting(ctx, match.Fingerprint)
		if err != nil || posting == nil {
			continue
		}
		for _, term := range a.termsFor(ctx, posting) {
			weights[collapseTerm(term)] += 1.0 * (0.5 + 0.5*recency)
		}
	}

	terms := rankTerms(weights, maxKeywords)
	fresh := &types.KeywordCache{
		UserID:      userID,
		Terms:       terms,
		DerivedFrom: fingerprints,
		Stale:       false,
	}
	if err := a.keywords.PutKeywordCache(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to store keyword cache: %w", err)
	}
	return fresh, nil
}

// termsFor extracts up to maxTermsPerPosting candidate terms for a posting,
// memoized by fingerprint.
func (a *Aggregator) termsFor(ctx context.Context, posting *types.JobPosting) []string {
	a.mu.Lock()
	if cached, ok := a.termCache[posting.Fingerprint]; ok {
		a.mu.Unlock()
		return cached
	}
	a.mu.Unlock()

	terms := a.extractTerms(ctx, posting)

	a.mu.Lock()
	a.termCache[posting.Fingerprint] = terms
	a.mu.Unlock()
	return terms
}

func (a *Aggregator) extractTerms(ctx context.Context, posting *types.JobPosting) []string {
	if a.caller != nil {
		prompt := prompts.Format(prompts.MustGet("matching.json", "extract_terms"), map[string]string{
			"Title":       posting.Title,
			"Description": posting.Description,
			"Max":         fmt.Sprintf("%d", maxTermsPerPosting),
		})
		if raw, err := a.caller.GenerateJSON(ctx, prompt, llm.TierLite); err == nil {
			var terms []string
			if err := json.Unmarshal([]byte(raw), &terms); err == nil && len(terms) > 0 {
				if len(terms) > maxTermsPerPosting {
					terms = terms[:maxTermsPerPosting]
				}
				return terms
			}
		}
	}
	return heuristicTerms(posting)
}

// heuristicTerms is the LLM-free fallback: frequency-ranked words from the
// posting text with stop words removed.
func heuristicTerms(posting *types.JobPosting) []string {
	counts := make(map[string]int)
	text := strings.ToLower(posting.Title + " " + posting.Description)
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '+' || r == '#' || r == '.')
	}) {
		word = strings.Trim(word, ".")
		if len(word) < 3 || stopWords[word] {
			continue
		}
		counts[word]++
	}

	weights := make(map[string]float64, len(counts))
	for word, n := range counts {
		weights[word] = float64(n)
	}
	return rankTerms(weights, maxTermsPerPosting)
}

// collapseTerm lowercases a term and folds synonyms and known plurals
// together. Plurals fold only through the synonym table; terms like
// kubernetes and redis end in "s" and must keep their spelling.
func collapseTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if canonical, ok := termSynonyms[term]; ok {
		return canonical
	}
	if len(term) > 4 && strings.HasSuffix(term, "s") && !strings.HasSuffix(term, "ss") {
		if canonical, ok := termSynonyms[term[:len(term)-1]]; ok {
			return canonical
		}
	}
	return term
}

// rankTerms orders terms by descending weight (ties alphabetical) and keeps
// the top n.
func rankTerms(weights map[string]float64, n int) []string {
	terms := make([]string, 0, len(weights))
	for term := range weights {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if weights[terms[i]] != weights[terms[j]] {
			return weights[terms[i]] > weights[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
