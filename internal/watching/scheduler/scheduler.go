// Package scheduler runs the two recurring jobs on one lifecycle: the
// jittered-interval followings refresh and the fixed-cadence classification
// pipeline. The jobs run on independent goroutines; one's failure or long
// runtime never blocks the other.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/postwatch/internal/core/config"
	"github.com/vietddude/postwatch/internal/core/retry"
	"github.com/vietddude/postwatch/internal/watching/metrics"
	"github.com/vietddude/postwatch/internal/watching/pipeline"
	"github.com/vietddude/postwatch/internal/watching/refresh"
)

// PipelineRunner runs one classification pipeline invocation.
type PipelineRunner interface {
	Run(ctx context.Context, cfg pipeline.Config) (*pipeline.RunStats, error)
}

// RefreshRunner runs one followings refresh.
type RefreshRunner interface {
	Run(ctx context.Context) (*refresh.Stats, error)
}

// ConfigProvider returns the current configuration. Called before each run so
// edits take effect between runs, never mid-run.
type ConfigProvider func() (*config.AppConfig, error)

// Status is a snapshot of the scheduler for the ops surface.
type Status struct {
	Running        bool               `json:"running"`
	NextPipelineAt time.Time          `json:"next_pipeline_at"`
	NextRefreshAt  time.Time          `json:"next_refresh_at"`
	LastRun        *pipeline.RunStats `json:"last_run,omitempty"`
	LastRefresh    *refresh.Stats     `json:"last_refresh,omitempty"`
}

// Scheduler owns the two job loops.
type Scheduler struct {
	pipeline PipelineRunner
	refresh  RefreshRunner
	provider ConfigProvider
	log      *slog.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu             sync.RWMutex
	stop           chan struct{}
	cfg            *config.AppConfig
	nextPipelineAt time.Time
	nextRefreshAt  time.Time
	lastRun        *pipeline.RunStats
	lastRefresh    *refresh.Stats
}

// New creates a scheduler. initial is the validated startup configuration;
// provider supplies refreshed configuration between runs.
func New(
	p PipelineRunner,
	r RefreshRunner,
	initial *config.AppConfig,
	provider ConfigProvider,
	log *slog.Logger,
) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		pipeline: p,
		refresh:  r,
		provider: provider,
		cfg:      initial,
		log:      log,
	}
}

// Start launches both job loops. Each runs once immediately. A stopped
// scheduler can be started again.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already running")
	}

	// Fresh per start so a restart is not poisoned by the closed channel
	stop := make(chan struct{})
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	s.wg.Add(2)
	go s.refreshLoop(ctx, stop)
	go s.pipelineLoop(ctx, stop)

	s.log.Info("Scheduler started",
		"cadence_hours", s.currentConfig().Watch.CadenceHours,
		"min_interval_hours", s.currentConfig().Watch.MinIntervalHours,
		"max_interval_hours", s.currentConfig().Watch.MaxIntervalHours,
	)
	return nil
}

// Stop signals both loops and waits for them to exit. An in-flight run is
// allowed to finish its current item; the context it received is expected to
// be cancelled by the caller for a prompt abort.
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.mu.RLock()
	stop := s.stop
	s.mu.RUnlock()
	close(stop)
	s.wg.Wait()
	s.log.Info("Scheduler stopped")
}

// Status returns a snapshot for the ops surface.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:        s.running.Load(),
		NextPipelineAt: s.nextPipelineAt,
		NextRefreshAt:  s.nextRefreshAt,
		LastRun:        s.lastRun,
		LastRefresh:    s.lastRefresh,
	}
}

// refreshLoop schedules the next refresh only after the previous one
// completes: run, pick a uniformly random delay in the configured interval,
// sleep, repeat.
func (s *Scheduler) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		s.runRefresh(ctx)

		cfg := s.reload()
		delay := JitterDelay(cfg.Watch.MinInterval(), cfg.Watch.MaxInterval())
		next := time.Now().Add(delay)

		s.mu.Lock()
		s.nextRefreshAt = next
		s.mu.Unlock()
		metrics.NextRun.WithLabelValues("refresh").Set(float64(next.Unix()))
		s.log.Debug("Next refresh scheduled", "at", next, "delay", delay.Round(time.Second))

		if !s.sleep(ctx, stop, delay) {
			return
		}
	}
}

// pipelineLoop runs once immediately, then on the fixed wall-clock cadence.
func (s *Scheduler) pipelineLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		s.runPipeline(ctx)

		cfg := s.reload()
		next := NextAligned(time.Now(), cfg.Watch.Cadence())

		s.mu.Lock()
		s.nextPipelineAt = next
		s.mu.Unlock()
		metrics.NextRun.WithLabelValues("pipeline").Set(float64(next.Unix()))
		s.log.Debug("Next pipeline run scheduled", "at", next)

		if !s.sleep(ctx, stop, time.Until(next)) {
			return
		}
	}
}

func (s *Scheduler) runPipeline(ctx context.Context) {
	cfg := s.currentConfig()
	stats, err := s.pipeline.Run(ctx, pipelineConfig(cfg))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.Runs.WithLabelValues("pipeline", "error").Inc()
		s.log.Error("Pipeline run failed", "error", err)
		return
	}
	metrics.Runs.WithLabelValues("pipeline", "ok").Inc()

	s.mu.Lock()
	s.lastRun = stats
	s.mu.Unlock()
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	stats, err := s.refresh.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.Runs.WithLabelValues("refresh", "error").Inc()
		s.log.Error("Refresh run failed", "error", err)
		return
	}
	metrics.Runs.WithLabelValues("refresh", "ok").Inc()

	s.mu.Lock()
	s.lastRefresh = stats
	s.mu.Unlock()
}

// reload re-reads configuration between runs. An invalid reload keeps the
// previous configuration.
func (s *Scheduler) reload() *config.AppConfig {
	if s.provider == nil {
		return s.currentConfig()
	}
	cfg, err := s.provider()
	if err != nil {
		s.log.Warn("Config reload failed, keeping previous", "error", err)
		return s.currentConfig()
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return cfg
}

func (s *Scheduler) currentConfig() *config.AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// sleep waits for d, returning false when the scheduler is stopping.
func (s *Scheduler) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// JitterDelay returns a uniformly random duration in [min, max].
func JitterDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// NextAligned returns the first instant strictly after now that is a whole
// multiple of cadence from midnight UTC. A 2h cadence lands on even hours.
func NextAligned(now time.Time, cadence time.Duration) time.Time {
	if cadence <= 0 {
		return now
	}
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := now.Sub(midnight)
	steps := elapsed/cadence + 1
	return midnight.Add(steps * cadence)
}

func pipelineConfig(cfg *config.AppConfig) pipeline.Config {
	return pipeline.Config{
		PostsPerAccount: cfg.Watch.PostsPerAccount,
		MinConfidence:   cfg.Watch.MinConfidence,
		Jitter:          cfg.Watch.Jitter(),
		VerdictTTL:      cfg.Cache.VerdictTTL(),
		Retry: retry.Config{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay(),
		},
	}
}
