// Package pipeline drives one ingestion cycle across all configured
// sources: validate, fetch in parallel, normalize, dedup, classify,
// commit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/newssift/newssift/app/dedup"
	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/spam"
	"github.com/newssift/newssift/app/store"
	"github.com/panjf2000/ants/v2"
)

const (
	// DefaultMaxConcurrency bounds in-flight fetches. The bound
	// respects remote rate limits; fetches are I/O-bound, so CPU count
	// is irrelevant here.
	DefaultMaxConcurrency = 3

	// DefaultFetchTimeout is the per-source deadline. Exceeding it is
	// that source's failure, not a pipeline abort.
	DefaultFetchTimeout = 5 * time.Minute
)

// Runner orchestrates ingestion cycles.
type Runner struct {
	store          store.Store
	registry       *source.Registry
	validator      *source.Validator
	detector       *dedup.Detector
	classifier     *spam.Classifier
	maxConcurrency int
	fetchTimeout   time.Duration
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxConcurrency overrides the fetch worker pool size.
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithFetchTimeout overrides the per-source fetch deadline.
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

func NewRunner(st store.Store, registry *source.Registry, opts ...Option) *Runner {
	r := &Runner{
		store:          st,
		registry:       registry,
		validator:      source.NewValidator(registry),
		detector:       dedup.NewDetector(),
		classifier:     spam.NewClassifier(),
		maxConcurrency: DefaultMaxConcurrency,
		fetchTimeout:   DefaultFetchTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// fetchResult pairs a source with its raw fetch output.
type fetchResult struct {
	desc  store.SourceDescriptor
	items []source.RawItem
}

// RunCycle runs one full ingestion cycle and returns its report. The
// store cycle lock is held for the whole read-modify-write sequence,
// so overlapping cycles serialize instead of losing updates. Store
// failures abort the cycle without committing a partial batch;
// per-source fetch failures are recorded and never abort the rest.
func (r *Runner) RunCycle(ctx context.Context) (*BatchReport, error) {
	startedAt := r.now().UTC()
	report := &BatchReport{
		PerSource: make(map[string]ScrapeOutcome),
		StartedAt: startedAt,
	}

	r.store.Lock()
	defer r.store.Unlock()

	sources, err := r.store.ReadSources()
	if err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}

	sources, validationChanged := r.validator.Run(ctx, sources)
	if validationChanged {
		// Persist the cache so restarts do not re-probe everything.
		// Non-fatal: a stale cache only costs an extra probe later.
		if err := r.store.WriteSources(sources); err != nil {
			slog.Warn("Failed to persist validation cache", "error", err)
		}
	}

	existing, err := r.store.ReadArticles()
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}

	worklist := r.buildWorklist(sources)
	slog.Info("Starting ingestion cycle",
		"sources", len(sources), "usable", len(worklist), "existing_articles", len(existing))

	results := r.fetchAll(ctx, worklist, report)

	survivors, acceptedPerSource := r.process(results, existing, report)

	if len(survivors) > 0 {
		if err := r.store.AppendArticles(survivors); err != nil {
			return nil, fmt.Errorf("failed to commit article batch: %w", err)
		}
	}

	r.updateSourceStats(sources, report, acceptedPerSource)
	if err := r.store.WriteSources(sources); err != nil {
		return nil, fmt.Errorf("failed to persist source statistics: %w", err)
	}

	report.Duration = r.now().UTC().Sub(startedAt)
	slog.Info("Ingestion cycle completed",
		"new", report.NewCount,
		"duplicates", report.DuplicateCount,
		"spam", report.SpamCount,
		"duration", report.Duration)

	return report, nil
}

// buildWorklist returns the enabled sources with a current valid
// verdict. Unknown kinds never reach here; the validator marks them
// invalid.
func (r *Runner) buildWorklist(sources []store.SourceDescriptor) []store.SourceDescriptor {
	var worklist []store.SourceDescriptor
	for _, desc := range sources {
		if source.Usable(desc) {
			worklist = append(worklist, desc)
		}
	}
	return worklist
}

// fetchAll fans the worklist out over a bounded worker pool and
// collects results as they complete. A source's failure or timeout is
// captured into its ScrapeOutcome; it never delays or aborts the
// others.
func (r *Runner) fetchAll(ctx context.Context, worklist []store.SourceDescriptor, report *BatchReport) []fetchResult {
	pool, err := ants.NewPool(r.maxConcurrency)
	if err != nil {
		// Pool creation only fails on invalid size; fall back to serial.
		slog.Warn("Failed to create worker pool, fetching serially", "error", err)
		return r.fetchSerial(ctx, worklist, report)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []fetchResult
	)

	for _, desc := range worklist {
		desc := desc

		fetcher, err := r.registry.New(desc)
		if err != nil {
			slog.Warn("Skipping source", "source", desc.Name, "error", err)
			continue
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			outcome, items := r.fetchOne(ctx, fetcher, desc)

			mu.Lock()
			report.PerSource[desc.Name] = outcome
			if len(items) > 0 {
				results = append(results, fetchResult{desc: desc, items: items})
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			slog.Error("Failed to submit fetch task", "source", desc.Name, "error", submitErr)
			report.PerSource[desc.Name] = ScrapeOutcome{Errors: 1, LastError: submitErr.Error()}
		}
	}

	wg.Wait()
	return results
}

func (r *Runner) fetchSerial(ctx context.Context, worklist []store.SourceDescriptor, report *BatchReport) []fetchResult {
	var results []fetchResult
	for _, desc := range worklist {
		fetcher, err := r.registry.New(desc)
		if err != nil {
			slog.Warn("Skipping source", "source", desc.Name, "error", err)
			continue
		}
		outcome, items := r.fetchOne(ctx, fetcher, desc)
		report.PerSource[desc.Name] = outcome
		if len(items) > 0 {
			results = append(results, fetchResult{desc: desc, items: items})
		}
	}
	return results
}

func (r *Runner) fetchOne(ctx context.Context, fetcher source.Fetcher, desc store.SourceDescriptor) (ScrapeOutcome, []source.RawItem) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	start := r.now()
	items, err := fetcher.Fetch(fetchCtx)
	outcome := ScrapeOutcome{
		ArticlesFound: len(items),
		Duration:      r.now().Sub(start),
	}

	if err != nil {
		// Transient by assumption: counted here, retried next cycle.
		outcome.Errors = 1
		outcome.LastError = err.Error()
		slog.Error("Source fetch failed", "source", desc.Name, "error", err)
		return outcome, nil
	}

	slog.Info("Source fetched", "source", desc.Name, "articles", len(items), "duration", outcome.Duration)
	return outcome, items
}

// process normalizes the raw batch, drops duplicates against the
// store and within the batch, and classifies survivors. Duplicate and
// spam verdicts are expected outcomes, counted and never logged as
// failures.
func (r *Runner) process(results []fetchResult, existing []store.Article, report *BatchReport) ([]store.Article, map[string]int) {
	fetchedAt := r.now().UTC()
	acceptedPerSource := make(map[string]int)

	existingIDs := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		existingIDs[a.ID] = struct{}{}
	}

	var survivors []store.Article
	comparison := existing

	for _, result := range results {
		for _, raw := range result.items {
			article := source.Normalize(raw, result.desc, fetchedAt)

			if _, seen := existingIDs[article.ID]; seen {
				report.DuplicateCount++
				continue
			}

			if matchID, dup := r.detector.IsDuplicate(article, comparison); dup {
				slog.Debug("Duplicate rejected", "title", article.Title, "matches", matchID)
				report.DuplicateCount++
				continue
			}

			if verdict := r.classifier.Run(&article); verdict.IsSpam {
				slog.Debug("Spam flagged", "title", article.Title, "score", verdict.Score)
				report.SpamCount++
			}

			survivors = append(survivors, article)
			comparison = append(comparison, article)
			existingIDs[article.ID] = struct{}{}
			acceptedPerSource[result.desc.Name]++
			report.NewCount++
		}
	}

	return survivors, acceptedPerSource
}

func (r *Runner) updateSourceStats(sources []store.SourceDescriptor, report *BatchReport, accepted map[string]int) {
	now := r.now().UTC()
	for i := range sources {
		desc := &sources[i]
		outcome, ok := report.PerSource[desc.Name]
		if !ok {
			continue
		}
		desc.LastFetchedAt = &now
		desc.LastArticleCount = outcome.ArticlesFound
		desc.TotalArticles += accepted[desc.Name]
	}
}
