package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/postwatch/internal/core/cache"
	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/infra/storage"
	"github.com/vietddude/postwatch/internal/watching/refresh"
	"github.com/vietddude/postwatch/internal/watching/scheduler"
)

// Server exposes the ops surface: liveness, scheduler status with per-account
// tracked-count deltas, accepted events, cache statistics and Prometheus
// metrics.
type Server struct {
	sched    *scheduler.Scheduler
	events   storage.EventRepository
	accounts storage.AccountRepository
	deltas   *refresh.Refresher
	verdicts *cache.Cache[*domain.Verdict]
	server   *http.Server
}

// NewServer creates the ops HTTP server.
func NewServer(
	sched *scheduler.Scheduler,
	events storage.EventRepository,
	accounts storage.AccountRepository,
	deltas *refresh.Refresher,
	verdicts *cache.Cache[*domain.Verdict],
	port int,
) *Server {
	mux := http.NewServeMux()
	s := &Server{
		sched:    sched,
		events:   events,
		accounts: accounts,
		deltas:   deltas,
		verdicts: verdicts,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/cache", s.handleCache)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// accountStatus is one watched account in the status payload. Deltas are nil
// when the history holds no sample old enough for the window.
type accountStatus struct {
	Account       string    `json:"account"`
	TrackedCount  int       `json:"tracked_count"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	DayDelta      *int      `json:"day_delta,omitempty"`
	WeekDelta     *int      `json:"week_delta,omitempty"`
	MonthDelta    *int      `json:"month_delta,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"scheduler": s.sched.Status()}

	accounts, err := s.accounts.GetWatched(r.Context())
	if err != nil {
		http.Error(w, "failed to list accounts", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	views := make([]accountStatus, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountStatus{
			Account:       a.Account,
			TrackedCount:  a.TrackedCount(),
			LastCheckedAt: a.LastCheckedAt,
			DayDelta:      s.delta(r.Context(), a, now, refresh.WindowDay),
			WeekDelta:     s.delta(r.Context(), a, now, refresh.WindowWeek),
			MonthDelta:    s.delta(r.Context(), a, now, refresh.WindowMonth),
		})
	}
	resp["accounts"] = views

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) delta(
	ctx context.Context,
	account domain.WatchedAccount,
	now time.Time,
	window refresh.Window,
) *int {
	d, ok, err := s.deltas.Delta(ctx, account, now, window)
	if err != nil || !ok {
		return nil
	}
	return &d
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.verdicts.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.EventFilter{Limit: 50}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = n
	}
	if v := q.Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			http.Error(w, "invalid min_confidence", http.StatusBadRequest)
			return
		}
		filter.MinConfidence = f
	}

	events, err := s.events.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.AcceptedEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
