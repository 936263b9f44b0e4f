package storage

import (
	"context"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// AccountRepository handles watched-account storage operations
type AccountRepository interface {
	// GetWatched retrieves all watched accounts, in stable account order
	GetWatched(ctx context.Context) ([]domain.WatchedAccount, error)

	// AddWatched registers a new account to watch (no-op if already present)
	AddWatched(ctx context.Context, account string) error

	// UpdateTracked replaces an account's followings list and bumps its
	// last-checked timestamp
	UpdateTracked(ctx context.Context, account string, tracked []string, checkedAt time.Time) error
}

// EventFilter narrows event listings.
type EventFilter struct {
	Limit         int
	Offset        int
	MinConfidence float64
}

// EventRepository handles accepted-event storage operations
type EventRepository interface {
	// Upsert saves an event keyed by post id; a second upsert for the same
	// id overwrites, it does not duplicate
	Upsert(ctx context.Context, event domain.AcceptedEvent) error

	// Exists reports whether an event for the post id is already stored
	Exists(ctx context.Context, postID string) (bool, error)

	// List retrieves events newest-first with pagination and confidence filtering
	List(ctx context.Context, filter EventFilter) ([]domain.AcceptedEvent, error)
}

// HistoryRepository handles tracked-count history snapshots
type HistoryRepository interface {
	// Record appends a history sample
	Record(ctx context.Context, sample domain.HistorySample) error

	// Near retrieves the most recent sample recorded at or before the given
	// time, or nil when none exists
	Near(ctx context.Context, account string, at time.Time) (*domain.HistorySample, error)
}
