package matching

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/types"
)

// memStore is an in-memory implementation of every matching store interface,
// mirroring the staleness and status semantics of the database layer.
type memStore struct {
	mu          sync.Mutex
	postings    map[string]types.JobPosting
	matches     map[string]types.JobMatch // userID|fingerprint
	savedOrder  map[string][]string       // userID -> fingerprints, most recent save first
	caches      map[string]*types.KeywordCache
	checkpoints map[string]bool // epoch|userID
	profiles    map[string]types.Profile
}

func newMemStore() *memStore {
	return &memStore{
		postings:    make(map[string]types.JobPosting),
		matches:     make(map[string]types.JobMatch),
		savedOrder:  make(map[string][]string),
		caches:      make(map[string]*types.KeywordCache),
		checkpoints: make(map[string]bool),
		profiles:    make(map[string]types.Profile),
	}
}

func (m *memStore) GetPosting(ctx context.Context, fingerprint string) (*types.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.postings[fingerprint]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) UpsertPosting(ctx context.Context, posting *types.JobPosting, staleness time.Duration) (*types.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *posting
	if existing, ok := m.postings[posting.Fingerprint]; ok {
		if posting.IngestedAt.Sub(existing.IngestedAt) <= staleness {
			stored.IngestedAt = existing.IngestedAt
		}
	}
	m.postings[posting.Fingerprint] = stored
	return &stored, nil
}

func (m *memStore) PurgeExpired(ctx context.Context, now time.Time, ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for fp, p := range m.postings {
		if Purgeable(p, now, ttl) {
			delete(m.postings, fp)
			purged++
		}
	}
	return purged, nil
}

func (m *memStore) GetMatch(ctx context.Context, userID, fingerprint string) (*types.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[userID+"|"+fingerprint]
	if !ok {
		return nil, nil
	}
	return &match, nil
}

func (m *memStore) UpsertMatch(ctx context.Context, match *types.JobMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := match.UserID + "|" + match.Fingerprint
	if existing, ok := m.matches[key]; ok {
		// Conflict path mirrors the database: only the score changes.
		existing.Score = match.Score
		m.matches[key] = existing
		return nil
	}
	m.matches[key] = *match
	return nil
}

func (m *memStore) SavedMatches(ctx context.Context, userID string) ([]types.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var saved []types.JobMatch
	for _, fp := range m.savedOrder[userID] {
		if match, ok := m.matches[userID+"|"+fp]; ok {
			saved = append(saved, match)
		}
	}
	return saved, nil
}

// saveMatch marks an existing match saved and records save order
func (m *memStore) saveMatch(userID, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "|" + fingerprint
	match := m.matches[key]
	match.UserID = userID
	match.Fingerprint = fingerprint
	match.Status = types.MatchSaved
	m.matches[key] = match
	m.savedOrder[userID] = append([]string{fingerprint}, m.savedOrder[userID]...)
}

func (m *memStore) GetKeywordCache(ctx context.Context, userID string) (*types.KeywordCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache, ok := m.caches[userID]
	if !ok {
		return nil, nil
	}
	cp := *cache
	return &cp, nil
}

func (m *memStore) PutKeywordCache(ctx context.Context, cache *types.KeywordCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cache
	m.caches[cache.UserID] = &cp
	return nil
}

func (m *memStore) MarkKeywordCacheStale(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cache, ok := m.caches[userID]; ok {
		cache.Stale = true
	}
	return nil
}

func (m *memStore) Processed(ctx context.Context, epoch, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpoints[epoch+"|"+userID], nil
}

func (m *memStore) MarkProcessed(ctx context.Context, epoch, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[epoch+"|"+userID] = true
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, userID string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *memStore) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.profiles))
	for id := range m.profiles {
		ids = append(ids, id)
	}
	return ids, nil
}

// skillProfile builds a minimal profile whose skills cluster carries the terms
func skillProfile(terms string) types.Profile {
	p := types.NewProfile()
	p[types.ClusterSkills].Fields = map[string]string{"primary": terms}
	p[types.ClusterSkills].Confidence = 0.9
	return p
}

// stubClient is a scripted llm.Client for scorer and aggregator tests
type stubClient struct {
	mu       sync.Mutex
	calls    int
	jsonText string
	err      error
}

func (c *stubClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return c.GenerateJSON(ctx, prompt, tier)
}

func (c *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.jsonText, nil
}

func (c *stubClient) Close() error { return nil }

func (c *stubClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func stubCaller(client *stubClient) *llm.Caller {
	return llm.NewCaller(client, llm.WithMaxRetries(0), llm.WithBackoffBase(1))
}
