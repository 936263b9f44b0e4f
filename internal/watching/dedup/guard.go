// Package dedup prevents the same post from ever being classified twice.
package dedup

import (
	"context"
	"sync"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// EventChecker reports whether a post already has a persisted event.
type EventChecker interface {
	Exists(ctx context.Context, postID string) (bool, error)
}

// VerdictLookup reports whether a verdict for a post is already cached.
type VerdictLookup interface {
	Cached(ctx context.Context, postID string) (*domain.Verdict, bool)
}

// Decision is the outcome of a dedup check.
type Decision int

const (
	// Process means all layers reported unseen; the post may be classified.
	Process Decision = iota

	// SkipSeen means the post was already seen earlier in this run.
	SkipSeen

	// SkipStored means a persisted event for the post already exists.
	SkipStored

	// Reuse means a cached verdict exists and must be reused, not recomputed.
	Reuse
)

// Guard is the three-layer dedup check for one pipeline run: the run-local
// set, the persistent store's event membership, and the verdict cache, in
// that strict order, short-circuiting on the first positive.
//
// The run-local set is per-run state; construct a fresh Guard for each run.
type Guard struct {
	store EventChecker
	cache VerdictLookup

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGuard creates a guard with an empty run-local set.
func NewGuard(store EventChecker, cache VerdictLookup) *Guard {
	return &Guard{
		store: store,
		cache: cache,
		seen:  make(map[string]struct{}),
	}
}

// Check classifies a post id against the three layers. For Reuse the cached
// verdict is returned alongside the decision. A store failure propagates so
// the caller can log and skip the post; the cache is never consulted as a
// substitute for the store's answer.
func (g *Guard) Check(ctx context.Context, postID string) (Decision, *domain.Verdict, error) {
	g.mu.Lock()
	_, dup := g.seen[postID]
	g.mu.Unlock()
	if dup {
		return SkipSeen, nil, nil
	}

	exists, err := g.store.Exists(ctx, postID)
	if err != nil {
		return Process, nil, err
	}
	if exists {
		return SkipStored, nil, nil
	}

	if g.cache != nil {
		if v, ok := g.cache.Cached(ctx, postID); ok {
			return Reuse, v, nil
		}
	}

	return Process, nil, nil
}

// MarkProcessed records a post id in the run-local set.
func (g *Guard) MarkProcessed(postID string) {
	g.mu.Lock()
	g.seen[postID] = struct{}{}
	g.mu.Unlock()
}
