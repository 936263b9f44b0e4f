package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/infra/storage"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

type eventRow struct {
	Account       string       `db:"account"`
	PostID        string       `db:"post_id"`
	PostURL       string       `db:"post_url"`
	PostTimestamp sql.NullTime `db:"post_timestamp"`
	Caption       string       `db:"caption"`
	MediaURL      string       `db:"media_url"`
	Category      string       `db:"category"`
	Details       []byte       `db:"details"`
	Confidence    float64      `db:"confidence"`
	CreatedAt     time.Time    `db:"created_at"`
}

// Upsert saves an event keyed by post id. The unique constraint on post_id
// makes a concurrent double classification harmless: last write wins.
func (r *EventRepo) Upsert(ctx context.Context, event domain.AcceptedEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode event details: %w", err)
	}

	query := `
		INSERT INTO accepted_events (
			post_id, account, post_url, post_timestamp, caption, media_url,
			category, details, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (post_id) DO UPDATE SET
			account = EXCLUDED.account,
			post_url = EXCLUDED.post_url,
			post_timestamp = EXCLUDED.post_timestamp,
			caption = EXCLUDED.caption,
			media_url = EXCLUDED.media_url,
			category = EXCLUDED.category,
			details = EXCLUDED.details,
			confidence = EXCLUDED.confidence
	`

	var ts any
	if event.PostTimestamp != nil {
		ts = *event.PostTimestamp
	}

	_, err = r.db.ExecContext(ctx, query,
		event.PostID, event.Account, event.PostURL, ts,
		event.Caption, event.MediaURL, event.Category, details,
		event.Confidence, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

// Exists reports whether an event for the post id is already stored.
func (r *EventRepo) Exists(ctx context.Context, postID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM accepted_events WHERE post_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, postID); err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return exists, nil
}

// List retrieves events newest-first.
func (r *EventRepo) List(
	ctx context.Context,
	filter storage.EventFilter,
) ([]domain.AcceptedEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []eventRow
	query := `
		SELECT post_id, account, post_url, post_timestamp, caption, media_url,
		       category, details, confidence, created_at
		FROM accepted_events
		WHERE confidence >= $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &rows, query, filter.MinConfidence, limit, filter.Offset); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]domain.AcceptedEvent, 0, len(rows))
	for _, row := range rows {
		ev := domain.AcceptedEvent{
			Account:    row.Account,
			PostID:     row.PostID,
			PostURL:    row.PostURL,
			Caption:    row.Caption,
			MediaURL:   row.MediaURL,
			Category:   row.Category,
			Confidence: row.Confidence,
			CreatedAt:  row.CreatedAt,
		}
		if row.PostTimestamp.Valid {
			ts := row.PostTimestamp.Time
			ev.PostTimestamp = &ts
		}
		if len(row.Details) > 0 {
			if err := json.Unmarshal(row.Details, &ev.Details); err != nil {
				return nil, fmt.Errorf("failed to decode event details for %s: %w", row.PostID, err)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}
