// Package pipeline orchestrates one classification run over all watched
// accounts: fetch recent posts, dedup, classify through the verdict cache,
// persist accepted events, aggregate run statistics.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/postwatch/internal/core/cache"
	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/core/retry"
	"github.com/vietddude/postwatch/internal/watching/dedup"
	"github.com/vietddude/postwatch/internal/watching/metrics"
)

const verdictKeyPrefix = "post_analysis:"

// VerdictKey builds the cache key for a post's classification verdict.
func VerdictKey(postID string) string {
	return verdictKeyPrefix + postID
}

// Source delivers recent posts for an account.
type Source interface {
	RecentPosts(ctx context.Context, handle string, max int) ([]domain.Post, error)
}

// Classifier produces a verdict for a post.
type Classifier interface {
	Classify(ctx context.Context, post domain.Post) (*domain.Verdict, error)
}

// AccountLister delivers the watched-account list.
type AccountLister interface {
	GetWatched(ctx context.Context) ([]domain.WatchedAccount, error)
}

// EventStore persists accepted events and answers membership checks.
type EventStore interface {
	Upsert(ctx context.Context, event domain.AcceptedEvent) error
	Exists(ctx context.Context, postID string) (bool, error)
}

// SharedVerdicts is the optional cross-process verdict cache (Redis).
type SharedVerdicts interface {
	Get(ctx context.Context, postID string) (*domain.Verdict, bool, error)
	Set(ctx context.Context, postID string, v *domain.Verdict, ttl time.Duration) error
}

// Config holds per-run settings. A snapshot is taken per run; it never
// changes mid-run.
type Config struct {
	PostsPerAccount int
	MinConfidence   float64
	Jitter          time.Duration
	VerdictTTL      time.Duration
	Retry           retry.Config
}

// Pipeline runs the classification flow. Construct once, Run per cadence tick.
type Pipeline struct {
	source     Source
	classifier Classifier
	accounts   AccountLister
	events     EventStore
	cache      *cache.Cache[*domain.Verdict]
	shared     SharedVerdicts // nil when Redis is not configured
	log        *slog.Logger
}

// New creates a pipeline. shared may be nil.
func New(
	source Source,
	classifier Classifier,
	accounts AccountLister,
	events EventStore,
	verdicts *cache.Cache[*domain.Verdict],
	shared SharedVerdicts,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		source:     source,
		classifier: classifier,
		accounts:   accounts,
		events:     events,
		cache:      verdicts,
		shared:     shared,
		log:        log,
	}
}

// Run executes one classification run over all watched accounts, in account
// order. Account- and post-level failures are logged and skipped; only an
// unavailable or empty account list aborts the run.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (*RunStats, error) {
	stats := &RunStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	before := p.cache.Stats()

	accounts, err := retry.Do(ctx, cfg.Retry, func(ctx context.Context) ([]domain.WatchedAccount, error) {
		return p.accounts.GetWatched(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNoWatchedAccounts, err)
	}
	if len(accounts) == 0 {
		return nil, domain.ErrNoWatchedAccounts
	}
	stats.AccountsTotal = len(accounts)

	guard := dedup.NewGuard(p.events, &verdictLookup{p: p, ttl: cfg.VerdictTTL})

	for _, account := range accounts {
		if ctx.Err() != nil {
			p.log.Warn("Run interrupted", "run_id", stats.RunID, "reason", ctx.Err())
			break
		}

		// Spread fetches out to avoid bursty request patterns upstream
		if err := jitterSleep(ctx, cfg.Jitter); err != nil {
			break
		}

		posts, err := retry.Do(ctx, cfg.Retry, func(ctx context.Context) ([]domain.Post, error) {
			return p.source.RecentPosts(ctx, account.Account, cfg.PostsPerAccount)
		})
		if err != nil {
			logFn := p.log.Error
			if domain.IsTransient(err) {
				logFn = p.log.Warn
			}
			logFn("Failed to fetch posts, skipping account",
				"account", account.Account, "error", err)
			stats.AccountsFailed++
			metrics.AccountFetchFailures.Inc()
			continue
		}

		for _, post := range posts {
			p.processPost(ctx, cfg, guard, post, stats)
		}
		stats.AccountsProcessed++
	}

	stats.FinishedAt = time.Now()
	after := p.cache.Stats()
	stats.CacheHits = after.Hits - before.Hits
	stats.CacheMisses = after.Misses - before.Misses

	metrics.CacheHits.Set(float64(after.Hits))
	metrics.CacheMisses.Set(float64(after.Misses))

	p.log.Info("Run complete",
		"run_id", stats.RunID,
		"accounts_processed", stats.AccountsProcessed,
		"accounts_failed", stats.AccountsFailed,
		"accounts_total", stats.AccountsTotal,
		"posts", stats.PostsProcessed,
		"events_detected", stats.EventsDetected,
		"events_persisted", stats.EventsPersisted,
		"run_cache_hits", stats.CacheHits,
		"run_cache_misses", stats.CacheMisses,
		"run_hit_ratio", fmt.Sprintf("%.2f", stats.HitRatio()),
		"cumulative_hit_ratio", fmt.Sprintf("%.2f", after.HitRatio()),
		"duration", stats.FinishedAt.Sub(stats.StartedAt).Round(time.Millisecond),
	)

	return stats, nil
}

func (p *Pipeline) processPost(
	ctx context.Context,
	cfg Config,
	guard *dedup.Guard,
	post domain.Post,
	stats *RunStats,
) {
	decision, cached, err := guard.Check(ctx, post.ID)
	if err != nil {
		p.log.Warn("Dedup check failed, skipping post",
			"account", post.Account, "post_id", post.ID, "error", err)
		return
	}

	switch decision {
	case dedup.SkipSeen:
		p.log.Debug("Duplicate post within run", "post_id", post.ID)
		return
	case dedup.SkipStored:
		p.log.Debug("Post already judged and stored", "post_id", post.ID)
		return
	}

	stats.PostsProcessed++
	metrics.PostsProcessed.Inc()
	guard.MarkProcessed(post.ID)

	var verdict *domain.Verdict
	if decision == dedup.Reuse {
		verdict = cached
	} else {
		// The guard's lookup already counted this as a cache miss.
		verdict, err = p.classify(ctx, cfg, post)
		if err != nil {
			logFn := p.log.Error
			if domain.IsTransient(err) {
				logFn = p.log.Warn
			}
			logFn("Classification failed, skipping post",
				"account", post.Account, "post_id", post.ID, "error", err)
			return
		}
		p.cache.Set(VerdictKey(post.ID), verdict, cfg.VerdictTTL)
	}

	if !verdict.Accepted(cfg.MinConfidence) {
		p.log.Debug("Post below threshold",
			"post_id", post.ID, "is_match", verdict.IsMatch, "confidence", verdict.Confidence)
		return
	}

	stats.EventsDetected++
	metrics.EventsDetected.Inc()

	event := domain.NewAcceptedEvent(post, verdict, time.Now())
	if err := p.events.Upsert(ctx, event); err != nil {
		p.log.Error("Failed to persist event",
			"account", post.Account, "post_id", post.ID, "error", err)
		return
	}

	stats.EventsPersisted++
	metrics.EventsPersisted.Inc()
	p.log.Info("Event persisted",
		"account", post.Account, "post_id", post.ID,
		"category", verdict.Category, "confidence", verdict.Confidence)
}

// classify calls the classification service through the retry executor and
// writes the verdict through to the shared cache on success.
func (p *Pipeline) classify(
	ctx context.Context,
	cfg Config,
	post domain.Post,
) (*domain.Verdict, error) {
	verdict, err := retry.Do(ctx, cfg.Retry, func(ctx context.Context) (*domain.Verdict, error) {
		return p.classifier.Classify(ctx, post)
	})
	if err != nil {
		metrics.Classifications.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.Classifications.WithLabelValues("ok").Inc()

	if p.shared != nil {
		if err := p.shared.Set(ctx, post.ID, verdict, cfg.VerdictTTL); err != nil {
			p.log.Warn("Failed to write verdict to shared cache",
				"post_id", post.ID, "error", err)
		}
	}

	return verdict, nil
}

// verdictLookup is the guard's view of the verdict caches: in-memory first,
// then the shared layer. Shared hits are pulled into the local cache. The
// local lookup goes through Get so every post reaching this layer lands in
// the hit/miss counters exactly once; a shared hit still counts as a local
// miss.
type verdictLookup struct {
	p   *Pipeline
	ttl time.Duration
}

func (l *verdictLookup) Cached(ctx context.Context, postID string) (*domain.Verdict, bool) {
	key := VerdictKey(postID)
	if v, ok := l.p.cache.Get(key); ok {
		return v, true
	}

	if l.p.shared == nil {
		return nil, false
	}
	v, ok, err := l.p.shared.Get(ctx, postID)
	if err != nil {
		l.p.log.Warn("Shared verdict lookup failed", "post_id", postID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	l.p.cache.Set(key, v, l.ttl)
	return v, true
}

func jitterSleep(ctx context.Context, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	delay := rand.N(window)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
