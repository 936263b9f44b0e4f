package control

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/postwatch/internal/core/cache"
	"github.com/vietddude/postwatch/internal/core/config"
	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/core/retry"
	"github.com/vietddude/postwatch/internal/infra/storage/memory"
	"github.com/vietddude/postwatch/internal/watching/refresh"
	"github.com/vietddude/postwatch/internal/watching/scheduler"
)

func newTestServer(t *testing.T, store *memory.Store) *Server {
	t.Helper()

	verdicts := cache.New[*domain.Verdict](cache.WithSweepInterval(0))
	t.Cleanup(verdicts.Close)

	refresher := refresh.New(nil, store.AccountRepo(), store.HistoryRepo(),
		retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond}, nil)
	sched := scheduler.New(nil, nil, &config.AppConfig{}, nil, nil)

	return NewServer(sched, store.EventRepo(), store.AccountRepo(), refresher, verdicts, 0)
}

func TestHandleStatus_AccountDeltas(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	now := time.Now()
	accounts := store.AccountRepo()
	if err := accounts.UpdateTracked(ctx, "alice", []string{"x", "y", "z"}, now); err != nil {
		t.Fatalf("seed account failed: %v", err)
	}

	history := store.HistoryRepo()
	samples := []domain.HistorySample{
		{Account: "alice", TrackedCount: 2, RecordedAt: now.Add(-25 * time.Hour)},
		{Account: "alice", TrackedCount: 1, RecordedAt: now.Add(-8 * 24 * time.Hour)},
	}
	for _, s := range samples {
		if err := history.Record(ctx, s); err != nil {
			t.Fatalf("seed history failed: %v", err)
		}
	}

	srv := newTestServer(t, store)

	rec := httptest.NewRecorder()
	srv.handleStatus(rec, httptest.NewRequest("GET", "/status", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Accounts []struct {
			Account      string `json:"account"`
			TrackedCount int    `json:"tracked_count"`
			DayDelta     *int   `json:"day_delta"`
			WeekDelta    *int   `json:"week_delta"`
			MonthDelta   *int   `json:"month_delta"`
		} `json:"accounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if len(resp.Accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(resp.Accounts))
	}

	a := resp.Accounts[0]
	if a.Account != "alice" || a.TrackedCount != 3 {
		t.Errorf("unexpected account view: %+v", a)
	}
	if a.DayDelta == nil || *a.DayDelta != 1 {
		t.Errorf("expected day delta +1, got %v", a.DayDelta)
	}
	if a.WeekDelta == nil || *a.WeekDelta != 2 {
		t.Errorf("expected week delta +2, got %v", a.WeekDelta)
	}
	if a.MonthDelta != nil {
		t.Errorf("expected no month delta without a sample, got %v", *a.MonthDelta)
	}
}

func TestHandleEvents_Validation(t *testing.T) {
	srv := newTestServer(t, memory.NewStore())

	cases := []struct {
		name string
		url  string
		want int
	}{
		{"defaults", "/events", 200},
		{"valid filters", "/events?limit=10&offset=5&min_confidence=90", 200},
		{"limit too large", "/events?limit=501", 400},
		{"negative offset", "/events?offset=-1", 400},
		{"confidence out of range", "/events?min_confidence=101", 400},
		{"non-numeric limit", "/events?limit=abc", 400},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.handleEvents(rec, httptest.NewRequest("GET", tc.url, nil))
			if rec.Code != tc.want {
				t.Errorf("%s: expected %d, got %d", tc.url, tc.want, rec.Code)
			}
		})
	}
}
