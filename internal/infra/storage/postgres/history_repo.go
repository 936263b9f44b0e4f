package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
)

// HistoryRepo implements storage.HistoryRepository using PostgreSQL.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new PostgreSQL history repository.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Record appends a tracked-count snapshot.
func (r *HistoryRepo) Record(ctx context.Context, sample domain.HistorySample) error {
	query := `
		INSERT INTO tracked_history (account, tracked_count, recorded_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.db.ExecContext(ctx, query, sample.Account, sample.TrackedCount, sample.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record history sample: %w", err)
	}
	return nil
}

// Near retrieves the most recent sample at or before the given time.
func (r *HistoryRepo) Near(
	ctx context.Context,
	account string,
	at time.Time,
) (*domain.HistorySample, error) {
	var sample domain.HistorySample
	query := `
		SELECT account, tracked_count, recorded_at
		FROM tracked_history
		WHERE account = $1 AND recorded_at <= $2
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &sample, query, account, at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history sample: %w", err)
	}
	return &sample, nil
}
