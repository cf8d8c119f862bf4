// Package app wires all ORAC Core subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Handler returns the external HTTP surface, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithTopicStore, WithCache, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oraclab/oraccore/internal/backend"
	"github.com/oraclab/oraccore/internal/cache"
	"github.com/oraclab/oraccore/internal/config"
	"github.com/oraclab/oraccore/internal/health"
	"github.com/oraclab/oraccore/internal/httpapi"
	"github.com/oraclab/oraccore/internal/mapping"
	"github.com/oraclab/oraccore/internal/pipeline"
	"github.com/oraclab/oraccore/internal/store/sqlitekv"
	"github.com/oraclab/oraccore/internal/supervisor"
	"github.com/oraclab/oraccore/internal/timing"
	"github.com/oraclab/oraccore/internal/topic"

	"github.com/redis/go-redis/v9"
)

// App owns all subsystem lifetimes and orchestrates the ORAC Core service.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	topics     topic.Store
	mappings   mapping.Store
	caches     cache.Cache
	backends   *backend.Registry
	supervisor *supervisor.Supervisor
	times      *timing.Store
	scheduler  *timing.Scheduler
	pipeline   *pipeline.Pipeline
	router     *httpapi.Router

	redisClient *redis.Client

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithTopicStore injects a topic store instead of creating one from config.
func WithTopicStore(s topic.Store) Option {
	return func(a *App) { a.topics = s }
}

// WithMappingStore injects a mapping store instead of creating one from config.
func WithMappingStore(s mapping.Store) Option {
	return func(a *App) { a.mappings = s }
}

// WithCache injects an STT-response cache instead of creating one from config.
func WithCache(c cache.Cache) Option {
	return func(a *App) { a.caches = c }
}

// WithBackendRegistry injects a backend registry instead of the default one.
func WithBackendRegistry(r *backend.Registry) Option {
	return func(a *App) { a.backends = r }
}

// New creates an App by wiring all subsystems together from cfg. Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: store construction, backend
// seeding, supervisor construction, and pipeline/router assembly. It does not
// start listening for HTTP traffic; call [App.Handler] and serve it, or use
// [App.ListenAndServe].
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTopics(); err != nil {
		return nil, fmt.Errorf("app: init topics: %w", err)
	}
	if err := a.initMappings(); err != nil {
		return nil, fmt.Errorf("app: init mappings: %w", err)
	}
	if err := a.initCache(); err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}
	if a.backends == nil {
		a.backends = backend.NewRegistry()
	}

	logger := slog.Default()
	a.supervisor = supervisor.New(supervisor.Config{
		Host:                 cfg.Supervisor.Host,
		BasePort:             cfg.Supervisor.BasePort,
		MaxConcurrentStarts:  cfg.Supervisor.MaxConcurrentStarts,
		MaxConcurrentServes:  cfg.Supervisor.MaxConcurrentServes,
		ReadinessTimeout:     time.Duration(cfg.Supervisor.ReadinessTimeoutSeconds) * time.Second,
		MaxReadinessFailures: cfg.Supervisor.MaxReadinessFailures,
	}, supervisor.NewSubprocessLogger(os.Stderr))

	a.times = timing.New(cfg.Pipeline.PerformanceLogCapacity)
	if cfg.Store.SQLitePath != "" {
		logDB, err := sqlitekv.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("app: open performance log sqlite store: %w", err)
		}
		a.times.SetOnComplete(func(cmd timing.Command) {
			if err := logDB.Append(cmd); err != nil {
				logger.Warn("app: append performance log to sqlite failed", "error", err)
			}
		})
		a.closers = append(a.closers, logDB.Close)
	}

	a.pipeline = pipeline.New(pipeline.Config{
		WakeWords:              cfg.Pipeline.WakeWords,
		ErrorCorrectionPhrases: cfg.Pipeline.ErrorCorrectionPhrases,
		ErrorCorrectionWindow:  time.Duration(cfg.Cache.ErrorCorrectionTimeoutSeconds) * time.Second,
		InferenceTimeout:       time.Duration(cfg.Pipeline.InferenceTimeoutSeconds) * time.Second,
		DispatchTimeout:        time.Duration(cfg.Pipeline.DispatchTimeoutSeconds) * time.Second,
		DataDir:                cfg.DataDir,
	}, cfg.Models.BinaryPath, a.topics, a.caches, a.mappings, a.backends, a.supervisor, a.times,
		pipeline.WithLogger(logger))

	a.router = httpapi.New(a.pipeline, a.topics, a.mappings, a.backends, a.caches, a.times, cfg.DataDir,
		health.Checker{Name: "topics", Check: func(ctx context.Context) error {
			_, err := a.topics.Get(ctx, "general")
			return err
		}},
	)

	if err := a.seedBackends(ctx); err != nil {
		return nil, fmt.Errorf("app: seed backends: %w", err)
	}

	a.scheduler = timing.NewScheduler(a.times, logger)
	if err := a.scheduler.ScheduleRingTrim("@every 1h", cfg.Pipeline.PerformanceLogCapacity); err != nil {
		return nil, fmt.Errorf("app: schedule ring trim: %w", err)
	}
	idleAge := time.Duration(cfg.Heartbeat.IdleThresholdSeconds) * time.Second * 4
	if err := a.scheduler.ScheduleStaleTopicPrune("@every 10m", staleTopicAdapter{a.topics}, idleAge); err != nil {
		return nil, fmt.Errorf("app: schedule stale topic prune: %w", err)
	}
	a.scheduler.Start()

	return a, nil
}

// staleTopicAdapter adapts [topic.Store] to [timing.StaleTopicPruner] so the
// timing package's scheduler doesn't need to import internal/topic.
type staleTopicAdapter struct {
	store topic.Store
}

func (a staleTopicAdapter) List(ctx context.Context) ([]timing.TopicLike, error) {
	topics, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]timing.TopicLike, len(topics))
	for i, t := range topics {
		out[i] = timing.TopicLike{ID: t.ID, AutoDiscovered: t.AutoDiscovered, LastSeen: t.Heartbeat.LastSeen}
	}
	return out, nil
}

func (a staleTopicAdapter) Delete(ctx context.Context, id string) error {
	return a.store.Delete(ctx, id)
}

// Handler returns the fully mounted external HTTP surface.
func (a *App) Handler() http.Handler {
	return a.router.Handler()
}

// ListenAndServe starts an HTTP server on cfg.Server.ListenAddr and blocks
// until ctx is cancelled, then shuts the server down gracefully.
func (a *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: a.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Shutdown releases every resource opened by New, in reverse order. Safe to
// call multiple times; only the first call has effect.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		if a.scheduler != nil {
			a.scheduler.Stop()
		}
		a.supervisor.ShutdownAll(ctx)
		for i := len(a.closers) - 1; i >= 0; i-- {
			if cerr := a.closers[i](); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initTopics() error {
	if a.topics != nil {
		return nil
	}
	active := time.Duration(a.cfg.Heartbeat.ActiveThresholdSeconds) * time.Second
	idle := time.Duration(a.cfg.Heartbeat.IdleThresholdSeconds) * time.Second
	store, err := topic.NewFileStore(filepath.Join(a.cfg.DataDir, "topics.json"), active, idle)
	if err != nil {
		return err
	}
	a.topics = store
	return nil
}

func (a *App) initMappings() error {
	if a.mappings != nil {
		return nil
	}
	store, err := mapping.NewFileStore(a.cfg.DataDir)
	if err != nil {
		return err
	}
	a.mappings = store
	return nil
}

func (a *App) initCache() error {
	if a.caches != nil {
		return nil
	}
	if a.cfg.Cache.RedisAddr != "" {
		a.redisClient = redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
		a.caches = cache.NewRedisCache(a.redisClient, a.cfg.Cache.MaxSize, "orac-core:cache:")
		a.closers = append(a.closers, a.redisClient.Close)
		return nil
	}
	snapshotPath := a.cfg.Cache.SnapshotPath
	if snapshotPath == "" {
		snapshotPath = filepath.Join(a.cfg.DataDir, "stt_cache.json")
	}
	store, err := cache.NewLRUCache(a.cfg.Cache.MaxSize, snapshotPath)
	if err != nil {
		return err
	}
	a.caches = store
	return nil
}

// seedBackends creates a backend record for every [config.BackendSeed] whose
// Name doesn't already match a persisted record. Existing records are left
// untouched so operator edits made through the API survive a config reload.
func (a *App) seedBackends(ctx context.Context) error {
	if len(a.cfg.Backends) == 0 {
		return nil
	}
	existing, err := a.mappings.List(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, rec := range existing {
		seen[rec.Name] = true
	}
	for _, seed := range a.cfg.Backends {
		if seen[seed.Name] {
			continue
		}
		conn := map[string]string{"base_url": seed.BaseURL, "token": seed.Token}
		for k, v := range seed.Options {
			conn[k] = v
		}
		if _, err := a.mappings.CreateBackend(ctx, seed.Name, seed.Type, conn); err != nil {
			return fmt.Errorf("seed backend %q: %w", seed.Name, err)
		}
	}
	return nil
}
