package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// AccountRepo implements storage.AccountRepository using PostgreSQL.
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new PostgreSQL account repository.
func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

type accountRow struct {
	Account         string    `db:"account"`
	TrackedAccounts []byte    `db:"tracked_accounts"`
	LastCheckedAt   time.Time `db:"last_checked_at"`
}

// GetWatched retrieves all watched accounts in account order.
func (r *AccountRepo) GetWatched(ctx context.Context) ([]domain.WatchedAccount, error) {
	var rows []accountRow
	query := `SELECT account, tracked_accounts, last_checked_at FROM watched_accounts ORDER BY account`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get watched accounts: %w", err)
	}

	accounts := make([]domain.WatchedAccount, 0, len(rows))
	for _, row := range rows {
		var tracked []string
		if len(row.TrackedAccounts) > 0 {
			if err := json.Unmarshal(row.TrackedAccounts, &tracked); err != nil {
				return nil, fmt.Errorf("failed to decode tracked accounts for %s: %w", row.Account, err)
			}
		}
		accounts = append(accounts, domain.WatchedAccount{
			Account:         row.Account,
			TrackedAccounts: tracked,
			LastCheckedAt:   row.LastCheckedAt,
		})
	}
	return accounts, nil
}

// AddWatched registers a new account to watch.
func (r *AccountRepo) AddWatched(ctx context.Context, account string) error {
	query := `
		INSERT INTO watched_accounts (account, tracked_accounts, last_checked_at)
		VALUES ($1, '[]', NOW())
		ON CONFLICT (account) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, account); err != nil {
		return fmt.Errorf("failed to add watched account: %w", err)
	}
	return nil
}

// UpdateTracked replaces the followings list for an account.
func (r *AccountRepo) UpdateTracked(
	ctx context.Context,
	account string,
	tracked []string,
	checkedAt time.Time,
) error {
	payload, err := json.Marshal(tracked)
	if err != nil {
		return fmt.Errorf("failed to encode tracked accounts: %w", err)
	}

	query := `
		UPDATE watched_accounts
		SET tracked_accounts = $2, last_checked_at = $3
		WHERE account = $1
	`
	if _, err := r.db.ExecContext(ctx, query, account, payload, checkedAt); err != nil {
		return fmt.Errorf("failed to update tracked accounts: %w", err)
	}
	return nil
}
