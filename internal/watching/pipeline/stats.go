package pipeline

import "time"

// RunStats captures one end-to-end pipeline invocation. Ephemeral; emitted in
// the run summary and kept for the ops status surface.
type RunStats struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	AccountsTotal     int `json:"accounts_total"`
	AccountsProcessed int `json:"accounts_processed"`
	AccountsFailed    int `json:"accounts_failed"`

	PostsProcessed  int `json:"posts_processed"`
	EventsDetected  int `json:"events_detected"`
	EventsPersisted int `json:"events_persisted"`

	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
}

// HitRatio returns this run's cache hit ratio, or 0 when nothing was looked up.
func (s *RunStats) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}
