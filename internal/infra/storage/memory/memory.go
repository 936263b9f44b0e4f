// Package memory provides an in-memory store implementation used for tests
// and for running without a database URL configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/infra/storage"
)

// Store holds all state behind one mutex. Writes are individually atomic,
// matching the per-row atomicity the Postgres layer provides.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.WatchedAccount
	events   map[string]domain.AcceptedEvent
	history  []domain.HistorySample
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.WatchedAccount),
		events:   make(map[string]domain.AcceptedEvent),
	}
}

// AccountRepo returns the account repository view of the store.
func (s *Store) AccountRepo() *AccountRepo { return &AccountRepo{s: s} }

// EventRepo returns the event repository view of the store.
func (s *Store) EventRepo() *EventRepo { return &EventRepo{s: s} }

// HistoryRepo returns the history repository view of the store.
func (s *Store) HistoryRepo() *HistoryRepo { return &HistoryRepo{s: s} }

// AccountRepo implements storage.AccountRepository in memory.
type AccountRepo struct {
	s *Store
}

func (r *AccountRepo) GetWatched(ctx context.Context) ([]domain.WatchedAccount, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	accounts := make([]domain.WatchedAccount, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Account < accounts[j].Account })
	return accounts, nil
}

func (r *AccountRepo) AddWatched(ctx context.Context, account string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[account]; !ok {
		r.s.accounts[account] = domain.WatchedAccount{
			Account:       account,
			LastCheckedAt: time.Now(),
		}
	}
	return nil
}

func (r *AccountRepo) UpdateTracked(
	ctx context.Context,
	account string,
	tracked []string,
	checkedAt time.Time,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a := r.s.accounts[account]
	a.Account = account
	a.TrackedAccounts = tracked
	a.LastCheckedAt = checkedAt
	r.s.accounts[account] = a
	return nil
}

// EventRepo implements storage.EventRepository in memory.
type EventRepo struct {
	s *Store
}

func (r *EventRepo) Upsert(ctx context.Context, event domain.AcceptedEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events[event.PostID] = event
	return nil
}

func (r *EventRepo) Exists(ctx context.Context, postID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.events[postID]
	return ok, nil
}

func (r *EventRepo) List(
	ctx context.Context,
	filter storage.EventFilter,
) ([]domain.AcceptedEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	events := make([]domain.AcceptedEvent, 0, len(r.s.events))
	for _, ev := range r.s.events {
		if ev.Confidence >= filter.MinConfidence {
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(events) {
		return nil, nil
	}
	events = events[filter.Offset:]
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// HistoryRepo implements storage.HistoryRepository in memory.
type HistoryRepo struct {
	s *Store
}

func (r *HistoryRepo) Record(ctx context.Context, sample domain.HistorySample) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.history = append(r.s.history, sample)
	return nil
}

func (r *HistoryRepo) Near(
	ctx context.Context,
	account string,
	at time.Time,
) (*domain.HistorySample, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var best *domain.HistorySample
	for i := range r.s.history {
		s := r.s.history[i]
		if s.Account != account || s.RecordedAt.After(at) {
			continue
		}
		if best == nil || s.RecordedAt.After(best.RecordedAt) {
			best = &r.s.history[i]
		}
	}
	if best == nil {
		return nil, nil
	}
	out := *best
	return &out, nil
}
