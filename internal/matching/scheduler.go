package matching

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/job-scout/internal/types"
)

// DefaultConcurrency bounds in-flight per-user tasks, sized for external-API
// rate limits.
const DefaultConcurrency = 5

// Source is the job-source collaborator searched once per user per run
type Source interface {
	Search(ctx context.Context, keywords []string) ([]types.JobPosting, error)
}

// RunReport summarizes one batch run
type RunReport struct {
	Epoch     string
	Users     int
	Processed int
	Skipped   int // already checkpointed in this epoch, or no profile
	Failed    int
	Purged    int
	Errors    []error
}

// Scheduler fans matching work out across users with bounded concurrency.
// One user's failure is logged and skipped, never aborting the batch; each
// user is checkpointed within the run epoch so an interrupted run resumes
// where it left off. Cancellation is cooperative, checked between per-user
// tasks.
type Scheduler struct {
	profiles    ProfileStore
	source      Source
	ingestor    *Ingestor
	scorer      *Scorer
	aggregator  *Aggregator
	checkpoints CheckpointStore
	postings    PostingStore
	concurrency int64
	ttl         time.Duration
	verbose     bool
	out         io.Writer
}

// SchedulerOptions configures a Scheduler
type SchedulerOptions struct {
	Concurrency int
	PostingTTL  time.Duration
	Verbose     bool
	Out         io.Writer // verbose output destination, default stdout
}

// NewScheduler wires the batch run components together
func NewScheduler(profiles ProfileStore, source Source, ingestor *Ingestor, scorer *Scorer,
	aggregator *Aggregator, checkpoints CheckpointStore, postings PostingStore, opts SchedulerOptions) *Scheduler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PostingTTL == 0 {
		opts.PostingTTL = DefaultPostingTTL
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &Scheduler{
		profiles:    profiles,
		source:      source,
		ingestor:    ingestor,
		scorer:      scorer,
		aggregator:  aggregator,
		checkpoints: checkpoints,
		postings:    postings,
		concurrency: int64(opts.Concurrency),
		ttl:         opts.PostingTTL,
		verbose:     opts.Verbose,
		out:         opts.Out,
	}
}

// logf writes verbose progress output. Failures also land in the run report,
// so nothing is printed outside verbose mode.
//
//nolint:errcheck // progress output; errors are not recoverable
func (s *Scheduler) logf(format string, args ...any) {
	if !s.verbose {
		return
	}
	fmt.Fprintf(s.out, "[VERBOSE] "+format+"\n", args...)
}

// Run executes one batch matching run under the given epoch. Re-running with
// the same epoch skips users already processed.
func (s *Scheduler) Run(ctx context.Context, epoch string) (*RunReport, error) {
	report := &RunReport{Epoch: epoch}

	purged, err := s.postings.PurgeExpired(ctx, time.Now(), s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to purge expired postings: %w", err)
	}
	report.Purged = purged

	userIDs, err := s.profiles.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	report.Users = len(userIDs)

	sem := semaphore.NewWeighted(s.concurrency)
	g := new(errgroup.Group)
	var mu sync.Mutex

	for _, userID := range userIDs {
		// Cooperative cancellation: checked between tasks, not mid-task.
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		userID := userID
		g.Go(func() error {
			defer sem.Release(1)

			outcome, err := s.processUser(ctx, epoch, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				// Isolated: count, report, continue the batch.
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("user %s: %w", userID, err))
				s.logf("matching failed for user %s: %v", userID, err)
			case outcome == outcomeSkipped:
				report.Skipped++
			default:
				report.Processed++
			}
			return nil
		})
	}

	_ = g.Wait()
	return report, nil
}

type userOutcome int

const (
	outcomeProcessed userOutcome = iota
	outcomeSkipped
)

// processUser runs ingestion, keyword refresh and scoring for one user
func (s *Scheduler) processUser(ctx context.Context, epoch, userID string) (userOutcome, error) {
	done, err := s.checkpoints.Processed(ctx, epoch, userID)
	if err != nil {
		return 0, fmt.Errorf("checkpoint lookup failed: %w", err)
	}
	if done {
		return outcomeSkipped, nil
	}

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return outcomeSkipped, nil
	}

	// Snapshot of the keyword cache for this run; invalidations landing
	// mid-batch take effect next run.
	keywords := profileTerms(profile)
	if cache, err := s.aggregator.Refresh(ctx, userID); err == nil && cache != nil {
		keywords = append(keywords, cache.Terms...)
	} else if err != nil {
		s.logf("keyword refresh failed for user %s: %v", userID, err)
	}

	found, err := s.source.Search(ctx, keywords)
	if err != nil {
		// Source failure skips this user for the run; no checkpoint, so a
		// resumed run retries them.
		return 0, fmt.Errorf("job source search failed: %w", err)
	}

	stored, stats, err := s.ingestor.Ingest(ctx, found)
	if err != nil {
		return 0, fmt.Errorf("ingestion failed: %w", err)
	}
	s.logf("user %s: %d found, %d inserted, %d updated", userID, len(found), stats.Inserted, stats.Updated)

	now := time.Now()
	for _, posting := range stored {
		if Purgeable(posting, now, s.ttl) {
			continue
		}
		if _, err := s.scorer.Score(ctx, userID, profile, posting); err != nil {
			return 0, fmt.Errorf("scoring failed for posting %s: %w", posting.Fingerprint, err)
		}
	}

	if err := s.checkpoints.MarkProcessed(ctx, epoch, userID); err != nil {
		return 0, fmt.Errorf("failed to checkpoint: %w", err)
	}
	return outcomeProcessed, nil
}
