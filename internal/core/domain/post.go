package domain

import "time"

// Post is a single piece of content published by a watched account,
// as returned by the item source.
type Post struct {
	ID          string     `json:"id"`
	Account     string     `json:"account"`
	URL         string     `json:"url"`
	Caption     string     `json:"caption,omitempty"`
	MediaURL    string     `json:"media_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
