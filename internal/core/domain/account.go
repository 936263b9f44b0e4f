package domain

import "time"

// WatchedAccount is a single monitored account and the accounts it follows.
// One row per account; updated in place by the followings refresh job.
type WatchedAccount struct {
	Account         string    `db:"account"          json:"account"`
	TrackedAccounts []string  `db:"-"                json:"tracked_accounts"`
	LastCheckedAt   time.Time `db:"last_checked_at"  json:"last_checked_at"`
}

// TrackedCount returns the number of accounts this account currently follows.
func (a WatchedAccount) TrackedCount() int {
	return len(a.TrackedAccounts)
}

// HistorySample is an append-only snapshot of an account's tracked count,
// used to compute deltas over day/week/month windows.
type HistorySample struct {
	Account      string    `db:"account"       json:"account"`
	TrackedCount int       `db:"tracked_count" json:"tracked_count"`
	RecordedAt   time.Time `db:"recorded_at"   json:"recorded_at"`
}
