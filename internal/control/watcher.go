package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/postwatch/internal/core/cache"
	"github.com/vietddude/postwatch/internal/core/config"
	"github.com/vietddude/postwatch/internal/core/domain"
	"github.com/vietddude/postwatch/internal/core/retry"
	"github.com/vietddude/postwatch/internal/infra/classify"
	redisclient "github.com/vietddude/postwatch/internal/infra/redis"
	"github.com/vietddude/postwatch/internal/infra/source"
	"github.com/vietddude/postwatch/internal/infra/storage"
	"github.com/vietddude/postwatch/internal/infra/storage/memory"
	"github.com/vietddude/postwatch/internal/infra/storage/postgres"
	"github.com/vietddude/postwatch/internal/watching/pipeline"
	"github.com/vietddude/postwatch/internal/watching/refresh"
	"github.com/vietddude/postwatch/internal/watching/scheduler"
)

// Watcher is the composition root: it wires the collaborator clients, the
// store, the verdict caches, the pipeline and the scheduler onto one
// lifecycle. No module-level shared state; everything is passed by handle.
type Watcher struct {
	cfg     *config.AppConfig
	cfgPath string

	db       *postgres.DB
	shared   *redisclient.Verdicts
	verdicts *cache.Cache[*domain.Verdict]
	sched    *scheduler.Scheduler
	server   *Server
	log      *slog.Logger
}

// NewWatcher creates a Watcher with all dependencies initialized. cfgPath is
// re-read between scheduled runs for hot reload.
func NewWatcher(cfg *config.AppConfig, cfgPath string) (*Watcher, error) {
	log := slog.Default()

	// 1. Storage
	var (
		db          *postgres.DB
		accountRepo storage.AccountRepository
		eventRepo   storage.EventRepository
		historyRepo storage.HistoryRepository
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		accountRepo = postgres.NewAccountRepo(db)
		eventRepo = postgres.NewEventRepo(db)
		historyRepo = postgres.NewHistoryRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		accountRepo = store.AccountRepo()
		eventRepo = store.EventRepo()
		historyRepo = store.HistoryRepo()
		log.Info("Using Memory storage")
	}

	// 2. Shared verdict cache (optional)
	var (
		sharedStore   *redisclient.Verdicts
		sharedLookups pipeline.SharedVerdicts
	)
	if cfg.Redis.URL != "" {
		var err error
		sharedStore, err = redisclient.NewVerdicts(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, shared verdict cache disabled", "error", err)
		} else {
			sharedLookups = sharedStore
			log.Info("Shared verdict cache enabled")
		}
	}

	// 3. Local verdict cache
	verdicts := cache.New[*domain.Verdict](
		cache.WithSweepInterval(cfg.Cache.SweepInterval()),
	)

	// 4. Collaborator clients
	sourceClient := source.NewClient(cfg.Source.URL, cfg.Source.Token, cfg.Source.Timeout())
	classifyClient := classify.NewClient(cfg.Classifier.URL, cfg.Classifier.Token, cfg.Classifier.Timeout())

	// 5. Jobs
	pipe := pipeline.New(
		sourceClient,
		classifyClient,
		accountRepo,
		eventRepo,
		verdicts,
		sharedLookups,
		log,
	)

	refresher := refresh.New(
		sourceClient,
		accountRepo,
		historyRepo,
		retry.Config{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay()},
		log,
	)

	// 6. Scheduler with between-run config reload
	var provider scheduler.ConfigProvider
	if cfgPath != "" {
		provider = func() (*config.AppConfig, error) { return config.Load(cfgPath) }
	}
	sched := scheduler.New(pipe, refresher, cfg, provider, log)

	w := &Watcher{
		cfg:      cfg,
		cfgPath:  cfgPath,
		db:       db,
		shared:   sharedStore,
		verdicts: verdicts,
		sched:    sched,
		log:      log,
	}
	w.server = NewServer(sched, eventRepo, accountRepo, refresher, verdicts, cfg.Server.Port)

	return w, nil
}

// Start writes the identity marker and launches the ops server and scheduler.
func (w *Watcher) Start(ctx context.Context) error {
	if err := WritePIDFile(w.cfg.PIDFile); err != nil {
		return err
	}

	go func() {
		if err := w.server.Start(); err != nil {
			w.log.Error("Ops server failed", "error", err)
		}
	}()

	return w.sched.Start(ctx)
}

// Stop performs an orderly shutdown and removes the identity marker.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping postwatch...")

	w.sched.Stop()
	w.verdicts.Close()

	if w.shared != nil {
		if err := w.shared.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Warn("Failed to close database", "error", err)
		}
	}

	RemovePIDFile(w.cfg.PIDFile)

	return w.server.Stop(ctx)
}
