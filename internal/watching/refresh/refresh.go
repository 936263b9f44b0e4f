// Package refresh implements the jittered-interval job: re-fetch each
// watched account's followings, update the store and append a history
// sample, plus delta queries over the recorded history.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/core/retry"
	"github.com/vietddude/postwatch/internal/watching/metrics"
)

// Window is a named lookback period for delta queries.
type Window time.Duration

const (
	WindowDay   = Window(24 * time.Hour)
	WindowWeek  = Window(7 * 24 * time.Hour)
	WindowMonth = Window(30 * 24 * time.Hour)
)

// FollowingsSource delivers the current followings list for an account.
type FollowingsSource interface {
	Followings(ctx context.Context, handle string) ([]string, error)
}

// AccountStore is the refresher's view of account storage.
type AccountStore interface {
	GetWatched(ctx context.Context) ([]domain.WatchedAccount, error)
	UpdateTracked(ctx context.Context, account string, tracked []string, checkedAt time.Time) error
}

// HistoryStore records and queries tracked-count snapshots.
type HistoryStore interface {
	Record(ctx context.Context, sample domain.HistorySample) error
	Near(ctx context.Context, account string, at time.Time) (*domain.HistorySample, error)
}

// Stats summarizes one refresh run.
type Stats struct {
	AccountsTotal     int       `json:"accounts_total"`
	AccountsRefreshed int       `json:"accounts_refreshed"`
	AccountsFailed    int       `json:"accounts_failed"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Refresher runs followings refreshes and answers delta queries.
type Refresher struct {
	source   FollowingsSource
	accounts AccountStore
	history  HistoryStore
	retryCfg retry.Config
	log      *slog.Logger
}

// New creates a refresher.
func New(
	source FollowingsSource,
	accounts AccountStore,
	history HistoryStore,
	retryCfg retry.Config,
	log *slog.Logger,
) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		source:   source,
		accounts: accounts,
		history:  history,
		retryCfg: retryCfg,
		log:      log,
	}
}

// Run refreshes every watched account's followings. Per-account failures are
// logged and skipped; only an unavailable account list aborts the run.
func (r *Refresher) Run(ctx context.Context) (*Stats, error) {
	accounts, err := r.accounts.GetWatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrNoWatchedAccounts, err)
	}

	stats := &Stats{AccountsTotal: len(accounts)}

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}

		tracked, err := retry.Do(ctx, r.retryCfg, func(ctx context.Context) ([]string, error) {
			return r.source.Followings(ctx, account.Account)
		})
		if err != nil {
			r.log.Warn("Failed to refresh followings, skipping account",
				"account", account.Account, "error", err)
			stats.AccountsFailed++
			continue
		}

		now := time.Now()
		if err := r.accounts.UpdateTracked(ctx, account.Account, tracked, now); err != nil {
			r.log.Error("Failed to store followings",
				"account", account.Account, "error", err)
			stats.AccountsFailed++
			continue
		}

		if err := r.history.Record(ctx, domain.HistorySample{
			Account:      account.Account,
			TrackedCount: len(tracked),
			RecordedAt:   now,
		}); err != nil {
			r.log.Warn("Failed to record history sample",
				"account", account.Account, "error", err)
		}

		stats.AccountsRefreshed++
		r.log.Debug("Refreshed followings",
			"account", account.Account, "tracked", len(tracked))
	}

	stats.FinishedAt = time.Now()
	if stats.AccountsFailed > 0 {
		metrics.Runs.WithLabelValues("refresh", "degraded").Inc()
	}
	r.log.Info("Followings refresh complete",
		"refreshed", stats.AccountsRefreshed,
		"failed", stats.AccountsFailed,
		"total", stats.AccountsTotal,
	)
	return stats, nil
}

// Delta returns the change in an account's tracked count over the window
// ending now. The baseline is the most recent sample at or before
// now-window; ok is false when no such sample exists.
func (r *Refresher) Delta(
	ctx context.Context,
	account domain.WatchedAccount,
	now time.Time,
	window Window,
) (delta int, ok bool, err error) {
	baseline, err := r.history.Near(ctx, account.Account, now.Add(-time.Duration(window)))
	if err != nil {
		return 0, false, err
	}
	if baseline == nil {
		return 0, false, nil
	}
	return account.TrackedCount() - baseline.TrackedCount, true, nil
}
