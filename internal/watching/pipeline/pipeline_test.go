package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/postwatch/internal/core/cache"
	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/core/retry"
)

type mockSource struct {
	posts map[string][]domain.Post
	fail  map[string]error
}

func (m *mockSource) RecentPosts(ctx context.Context, handle string, max int) ([]domain.Post, error) {
	if err := m.fail[handle]; err != nil {
		return nil, err
	}
	posts := m.posts[handle]
	if len(posts) > max {
		posts = posts[:max]
	}
	return posts, nil
}

type mockClassifier struct {
	mu       sync.Mutex
	verdicts map[string]*domain.Verdict
	err      error
	calls    int
}

func (m *mockClassifier) Classify(ctx context.Context, post domain.Post) (*domain.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.verdicts[post.ID]
	if !ok {
		return &domain.Verdict{IsMatch: false, Confidence: 0}, nil
	}
	return v, nil
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockAccounts struct {
	accounts []domain.WatchedAccount
	err      error
}

func (m *mockAccounts) GetWatched(ctx context.Context) ([]domain.WatchedAccount, error) {
	return m.accounts, m.err
}

type mockEvents struct {
	mu      sync.Mutex
	events  map[string]domain.AcceptedEvent
	upserts int
}

func newMockEvents() *mockEvents {
	return &mockEvents{events: make(map[string]domain.AcceptedEvent)}
}

func (m *mockEvents) Upsert(ctx context.Context, event domain.AcceptedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.events[event.PostID] = event
	return nil
}

func (m *mockEvents) Exists(ctx context.Context, postID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[postID]
	return ok, nil
}

func testConfig() Config {
	return Config{
		PostsPerAccount: 10,
		MinConfidence:   90,
		Jitter:          0,
		VerdictTTL:      7 * 24 * time.Hour,
		Retry:           retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func newTestPipeline(
	src Source,
	cls Classifier,
	accounts AccountLister,
	events EventStore,
) (*Pipeline, *cache.Cache[*domain.Verdict]) {
	verdicts := cache.New[*domain.Verdict](cache.WithSweepInterval(0))
	return New(src, cls, accounts, events, verdicts, nil, nil), verdicts
}

func TestRun_PersistsAboveThresholdOnly(t *testing.T) {
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {
			{ID: "p1", Account: "alice", URL: "https://example.com/p1"},
			{ID: "p2", Account: "alice", URL: "https://example.com/p2"},
		},
	}}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: true, Confidence: 95, Category: "festival"},
		"p2": {IsMatch: true, Confidence: 80},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.PostsProcessed != 2 {
		t.Errorf("expected 2 posts processed, got %d", stats.PostsProcessed)
	}
	if stats.EventsDetected != 1 {
		t.Errorf("expected 1 event detected, got %d", stats.EventsDetected)
	}
	if stats.EventsPersisted != 1 {
		t.Errorf("expected 1 event persisted, got %d", stats.EventsPersisted)
	}

	if _, ok := events.events["p1"]; !ok {
		t.Error("expected p1 persisted (confidence 95 >= 90)")
	}
	if _, ok := events.events["p2"]; ok {
		t.Error("p2 must not be persisted (confidence 80 < 90)")
	}
}

func TestRun_NeverClassifiesSamePostTwice(t *testing.T) {
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {
			{ID: "p1", Account: "alice"}, // persisted on run 1
			{ID: "p2", Account: "alice"}, // negative verdict, cached only
		},
	}}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: true, Confidence: 95},
		"p2": {IsMatch: false, Confidence: 10},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	if _, err := p.Run(context.Background(), testConfig()); err != nil {
		t.Fatalf("run 1 failed: %v", err)
	}
	if cls.callCount() != 2 {
		t.Fatalf("expected 2 classifications on run 1, got %d", cls.callCount())
	}

	exists, err := events.Exists(context.Background(), "p1")
	if err != nil || !exists {
		t.Fatalf("expected p1 stored after run 1, exists=%v err=%v", exists, err)
	}

	// Run 2 sees the same posts: p1 is skipped via the store, p2 via the
	// cached verdict. The classifier must not be invoked again.
	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("run 2 failed: %v", err)
	}
	if cls.callCount() != 2 {
		t.Errorf("expected no further classifications on run 2, got %d total", cls.callCount())
	}
	if stats.EventsPersisted != 0 {
		t.Errorf("expected no events persisted on run 2, got %d", stats.EventsPersisted)
	}
}

func TestRun_DuplicatePostsWithinRun(t *testing.T) {
	// Upstream source returns the same post twice in one batch
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {
			{ID: "p1", Account: "alice"},
			{ID: "p1", Account: "alice"},
		},
	}}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: false, Confidence: 10},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cls.callCount() != 1 {
		t.Errorf("expected 1 classification for duplicated post, got %d", cls.callCount())
	}
	if stats.PostsProcessed != 1 {
		t.Errorf("expected 1 post processed, got %d", stats.PostsProcessed)
	}
}

func TestRun_AccountFetchFailureIsNonFatal(t *testing.T) {
	src := &mockSource{
		posts: map[string][]domain.Post{
			"bob": {{ID: "p1", Account: "bob"}},
		},
		fail: map[string]error{
			"alice": domain.ErrSourceUnavailable,
		},
	}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: true, Confidence: 99},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{
		{Account: "alice"},
		{Account: "bob"},
	}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("run must not abort on account failure: %v", err)
	}
	if stats.AccountsFailed != 1 {
		t.Errorf("expected 1 failed account, got %d", stats.AccountsFailed)
	}
	if stats.AccountsProcessed != 1 {
		t.Errorf("expected 1 processed account, got %d", stats.AccountsProcessed)
	}
	if stats.EventsPersisted != 1 {
		t.Errorf("expected bob's event persisted, got %d", stats.EventsPersisted)
	}
}

func TestRun_ClassificationFailureSkipsPost(t *testing.T) {
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {{ID: "p1", Account: "alice"}},
	}}
	cls := &mockClassifier{err: domain.ErrServiceUnavailable}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("run must not abort on classification failure: %v", err)
	}
	if stats.EventsPersisted != 0 {
		t.Errorf("expected no events persisted, got %d", stats.EventsPersisted)
	}
	// Retried MaxAttempts times, then skipped
	if cls.callCount() != 2 {
		t.Errorf("expected 2 classification attempts, got %d", cls.callCount())
	}
}

func TestRun_NoWatchedAccountsIsFatal(t *testing.T) {
	events := newMockEvents()

	p, verdicts := newTestPipeline(
		&mockSource{},
		&mockClassifier{},
		&mockAccounts{accounts: nil},
		events,
	)
	defer verdicts.Close()

	_, err := p.Run(context.Background(), testConfig())
	if !errors.Is(err, domain.ErrNoWatchedAccounts) {
		t.Errorf("expected ErrNoWatchedAccounts, got %v", err)
	}
}

func TestRun_ReusedVerdictCountsCacheHit(t *testing.T) {
	// A negative verdict is never persisted, so on a later run the post
	// reaches the cache layer again. The reuse must surface as a cache hit
	// in the run stats, not as a silent zero.
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {{ID: "p1", Account: "alice"}},
	}}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: false, Confidence: 10},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	first, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("run 1 failed: %v", err)
	}
	if first.CacheMisses != 1 || first.CacheHits != 0 {
		t.Errorf("run 1: expected 1 miss / 0 hits, got %d / %d",
			first.CacheMisses, first.CacheHits)
	}

	second, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("run 2 failed: %v", err)
	}
	if cls.callCount() != 1 {
		t.Errorf("expected verdict served from cache, classifier called %d times", cls.callCount())
	}
	if second.CacheHits != 1 {
		t.Errorf("run 2: expected 1 cache hit for the reused verdict, got %d", second.CacheHits)
	}
	if second.CacheMisses != 0 {
		t.Errorf("run 2: expected 0 cache misses, got %d", second.CacheMisses)
	}
	if second.HitRatio() != 1 {
		t.Errorf("run 2: expected hit ratio 1.0, got %v", second.HitRatio())
	}
}

func TestRun_CacheStatsPerRun(t *testing.T) {
	src := &mockSource{posts: map[string][]domain.Post{
		"alice": {{ID: "p1", Account: "alice"}},
	}}
	cls := &mockClassifier{verdicts: map[string]*domain.Verdict{
		"p1": {IsMatch: false, Confidence: 10},
	}}
	events := newMockEvents()
	accounts := &mockAccounts{accounts: []domain.WatchedAccount{{Account: "alice"}}}

	p, verdicts := newTestPipeline(src, cls, accounts, events)
	defer verdicts.Close()

	stats, err := p.Run(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.CacheMisses != 1 {
		t.Errorf("expected 1 cache miss on first run, got %d", stats.CacheMisses)
	}
	if stats.CacheHits != 0 {
		t.Errorf("expected 0 cache hits on first run, got %d", stats.CacheHits)
	}
}
