package domain

import "time"

// Verdict is the structured output of the classification service for one post.
// Confidence is a percentage in [0,100]. A verdict is transient; it is only
// persisted (as an AcceptedEvent) when IsMatch is true and Confidence clears
// the configured threshold.
type Verdict struct {
	IsMatch    bool           `json:"is_match"`
	Category   string         `json:"category,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Accepted reports whether the verdict clears the given confidence threshold.
func (v *Verdict) Accepted(minConfidence float64) bool {
	return v.IsMatch && v.Confidence >= minConfidence
}

// AcceptedEvent is the durable record of a post judged interesting.
// PostID carries a unique constraint in the store; the upsert keyed on it is
// the system's durable de-duplication backstop.
type AcceptedEvent struct {
	Account       string         `db:"account"        json:"account"`
	PostID        string         `db:"post_id"        json:"post_id"`
	PostURL       string         `db:"post_url"       json:"post_url"`
	PostTimestamp *time.Time     `db:"post_timestamp" json:"post_timestamp,omitempty"`
	Caption       string         `db:"caption"        json:"caption,omitempty"`
	MediaURL      string         `db:"media_url"      json:"media_url,omitempty"`
	Category      string         `db:"category"       json:"category,omitempty"`
	Details       map[string]any `db:"-"              json:"details,omitempty"`
	Confidence    float64        `db:"confidence"     json:"confidence"`
	CreatedAt     time.Time      `db:"created_at"     json:"created_at"`
}

// NewAcceptedEvent builds an event from a post and its verdict.
func NewAcceptedEvent(post Post, v *Verdict, now time.Time) AcceptedEvent {
	return AcceptedEvent{
		Account:       post.Account,
		PostID:        post.ID,
		PostURL:       post.URL,
		PostTimestamp: post.PublishedAt,
		Caption:       post.Caption,
		MediaURL:      post.MediaURL,
		Category:      v.Category,
		Details:       v.Details,
		Confidence:    v.Confidence,
		CreatedAt:     now,
	}
}
