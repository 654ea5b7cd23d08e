package matching

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-scout/internal/types"
)

// countingSource tracks concurrent Search calls and can fail selected users
type countingSource struct {
	mu         sync.Mutex
	inFlight   int
	maxSeen    int
	delay      time.Duration
	postings   []types.JobPosting
	failSearch bool
}

func (s *countingSource) Search(ctx context.Context, keywords []string) ([]types.JobPosting, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxSeen {
		s.maxSeen = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.inFlight--
	fail := s.failSearch
	s.mu.Unlock()

	if fail {
		return nil, fmt.Errorf("source unavailable")
	}
	return s.postings, nil
}

func newTestScheduler(store *memStore, source Source, concurrency int) *Scheduler {
	return NewScheduler(store, source, NewIngestor(store, nil, 0), NewScorer(store, nil, 70),
		NewAggregator(store, store, store, nil), store, store, SchedulerOptions{Concurrency: concurrency})
}

func TestScheduler_ProcessesAllUsers(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 4; i++ {
		store.profiles[fmt.Sprintf("user-%d", i)] = skillProfile("go, kubernetes")
	}
	source := &countingSource{postings: []types.JobPosting{
		{ExternalID: "ext-1", Title: "Go Engineer", Company: "ACME", Description: "go and kubernetes work"},
	}}

	report, err := newTestScheduler(store, source, 2).Run(context.Background(), "2026-08-29")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Users)
	assert.Equal(t, 4, report.Processed)
	assert.Zero(t, report.Failed)

	// Every user got the posting scored and a checkpoint recorded
	for i := 0; i < 4; i++ {
		userID := fmt.Sprintf("user-%d", i)
		match, err := store.GetMatch(context.Background(), userID, Fingerprint("ext-1", "Go Engineer", "ACME"))
		require.NoError(t, err)
		assert.NotNil(t, match, "user %s missing match", userID)

		done, err := store.Processed(context.Background(), "2026-08-29", userID)
		require.NoError(t, err)
		assert.True(t, done)
	}
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 12; i++ {
		store.profiles[fmt.Sprintf("user-%d", i)] = skillProfile("go")
	}
	source := &countingSource{delay: 10 * time.Millisecond}

	_, err := newTestScheduler(store, source, 3).Run(context.Background(), "epoch-1")
	require.NoError(t, err)

	assert.LessOrEqual(t, source.maxSeen, 3, "no more than the configured users in flight")
	assert.Greater(t, source.maxSeen, 1, "work actually ran in parallel")
}

func TestScheduler_FailureIsolation(t *testing.T) {
	store := newMemStore()
	store.profiles["good-user"] = skillProfile("go")
	store.profiles["bad-user"] = types.Profile(nil) // loads fine but empty

	// Fail everyone's search, then verify no checkpoint was written
	source := &countingSource{failSearch: true}
	report, err := newTestScheduler(store, source, 2).Run(context.Background(), "epoch-1")
	require.NoError(t, err, "per-user failures never abort the batch")

	assert.Equal(t, 1, report.Failed, "only the user with a profile reached the source")
	assert.Equal(t, 1, report.Skipped, "the profileless user is skipped")
	require.Len(t, report.Errors, 1)

	done, err := store.Processed(context.Background(), "epoch-1", "good-user")
	require.NoError(t, err)
	assert.False(t, done, "failed users carry no checkpoint, so a resumed run retries them")
}

func TestScheduler_FailureOutputOnlyInVerboseMode(t *testing.T) {
	newScheduler := func(store *memStore, source Source, opts SchedulerOptions) *Scheduler {
		return NewScheduler(store, source, NewIngestor(store, nil, 0), NewScorer(store, nil, 70),
			NewAggregator(store, store, store, nil), store, store, opts)
	}

	store := newMemStore()
	store.profiles["user-1"] = skillProfile("go")
	source := &countingSource{failSearch: true}

	var quiet bytes.Buffer
	_, err := newScheduler(store, source, SchedulerOptions{Concurrency: 1, Out: &quiet}).
		Run(context.Background(), "epoch-1")
	require.NoError(t, err)
	assert.Empty(t, quiet.String(), "failures surface through the run report only")

	var loud bytes.Buffer
	_, err = newScheduler(store, source, SchedulerOptions{Concurrency: 1, Verbose: true, Out: &loud}).
		Run(context.Background(), "epoch-1")
	require.NoError(t, err)
	assert.Contains(t, loud.String(), "matching failed for user user-1")
}

func TestScheduler_EpochResumability(t *testing.T) {
	store := newMemStore()
	store.profiles["user-1"] = skillProfile("go")
	store.profiles["user-2"] = skillProfile("go")
	require.NoError(t, store.MarkProcessed(context.Background(), "epoch-1", "user-1"))

	source := &countingSource{}
	report, err := newTestScheduler(store, source, 2).Run(context.Background(), "epoch-1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Processed)

	// A full re-run under the same epoch does nothing new
	rerun, err := newTestScheduler(store, source, 2).Run(context.Background(), "epoch-1")
	require.NoError(t, err)
	assert.Equal(t, 2, rerun.Skipped)
	assert.Zero(t, rerun.Processed)

	// A fresh epoch starts over
	fresh, err := newTestScheduler(store, source, 2).Run(context.Background(), "epoch-2")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Processed)
}

func TestScheduler_PurgesExpiredPostingsFirst(t *testing.T) {
	store := newMemStore()
	past := time.Now().Add(-time.Hour)
	store.postings["expired"] = types.JobPosting{Fingerprint: "expired", ClosingDate: &past}

	report, err := newTestScheduler(store, &countingSource{}, 1).Run(context.Background(), "epoch-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
}

func TestScheduler_CancellationStopsDispatch(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 50; i++ {
		store.profiles[fmt.Sprintf("user-%d", i)] = skillProfile("go")
	}
	source := &countingSource{delay: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	report, err := newTestScheduler(store, source, 2).Run(ctx, "epoch-1")
	require.NoError(t, err)
	assert.Less(t, report.Processed+report.Failed+report.Skipped, 50, "cancellation stopped the dispatch loop")
}
